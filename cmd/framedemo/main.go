// Command framedemo renders a textured triangle through a framecore
// Context for a number of frames.
//
// Usage:
//
//	framedemo --width 800 --height 600 --frames 120 --backend vulkan
//
// Flags override the values of the optional --config TOML file. Without
// the gpu build tag only the headless noop backend is linked in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/internal/logging"
	"github.com/gogpu/framecore/scene"
	"github.com/gogpu/framecore/shader"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// flags are the command line settings that are not part of the config.
type flags struct {
	configPath string
	frames     uint64
	texture    string
	watch      bool
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, fl, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "framedemo:", err)
		return exitUsage
	}

	logger := slog.New(logging.NewConsoleHandler(stderr, cfg.LogLevel))
	framecore.SetLogger(logger)
	defer framecore.SetLogger(nil)

	demo := newTriangleScene(fl.texture, logger)
	fc, err := framecore.New(cfg, framecore.SurfaceTarget{},
		framecore.WithShaderOptions(shader.WithOnChange(demo.shaderChanged)))
	if err != nil {
		return report(logger, err)
	}
	logger.Info("framedemo started",
		"backend", fc.Backend(), "adapter", fc.AdapterInfo().Name,
		"present_mode", fc.PresentMode().String(), "tearing", fc.TearingSupported())

	if fl.watch {
		if err := fc.Shaders().Watch(ctx); err != nil {
			logger.Warn("shader hot reload disabled", "err", err)
		}
	}

	r := scene.NewRunner(fc, demo,
		scene.WithFrames(fl.frames),
		scene.WithLogger(logger),
		scene.WithFPSReport(func(t scene.FrameTime) {
			logger.Info("frame rate", "fps", strconv.FormatFloat(t.FPS, 'f', 2, 64), "frames", t.Frame)
		}),
	)
	if err := r.Run(ctx); err != nil {
		return report(logger, err)
	}
	st := r.Stats()
	logger.Info("framedemo finished", "frames", st.Frames, "aborted", st.Aborted, "fps", st.FPS)
	return exitOK
}

func report(logger *slog.Logger, err error) int {
	var fe *framecore.FatalError
	if errors.As(err, &fe) {
		logger.Error("fatal device error", "op", fe.Op, "err", fe.Err)
		return exitError
	}
	logger.Error("framedemo failed", "err", err)
	return exitError
}

// parseArgs loads the config file named by --config, if any, and applies
// the flags that were set on top of it.
func parseArgs(args []string, stderr io.Writer) (framecore.Config, flags, error) {
	var fl flags
	set := flag.NewFlagSet("framedemo", flag.ContinueOnError)
	set.SetOutput(stderr)

	set.StringVar(&fl.configPath, "config", "", "TOML configuration `file`")
	set.Uint64Var(&fl.frames, "frames", 0, "stop after `n` frames (0 runs until interrupted)")
	set.StringVar(&fl.texture, "texture", "", "image `file` to map on the triangle instead of the checkerboard")
	set.BoolVar(&fl.watch, "watch", false, "reload shaders when files under the data root change")

	width := set.Uint("width", 0, "back-buffer `width`")
	height := set.Uint("height", 0, "back-buffer `height`")
	backend := set.String("backend", "", "hal backend `name`: "+strings.Join(framecore.BackendNames(), ", "))
	vsync := set.String("vsync", "", "wait for vertical blank: `on|off`")
	buffers := set.Int("back-buffers", 0, "back-buffer `count` (2 or 3)")
	inFlight := set.Int("frames-in-flight", 0, "frames the CPU may run ahead")
	data := set.String("data", "", "data root `dir`ectory holding shader/")
	level := set.String("log-level", "", "log `level`: debug, info, warn or error")
	recoverOccluded := set.Bool("recover-occluded", false, "skip presents on occluded surfaces instead of failing")

	if err := set.Parse(args); err != nil {
		return framecore.Config{}, fl, err
	}
	if set.NArg() > 0 {
		return framecore.Config{}, fl, fmt.Errorf("unexpected arguments %v", set.Args())
	}

	cfg := framecore.DefaultConfig()
	if fl.configPath != "" {
		var err error
		if cfg, err = framecore.LoadConfig(fl.configPath); err != nil {
			return framecore.Config{}, fl, err
		}
	}

	var err error
	set.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "width":
			cfg.Width = uint32(*width)
		case "height":
			cfg.Height = uint32(*height)
		case "backend":
			cfg.Backend = *backend
		case "vsync":
			cfg.VSync, err = parseSwitch(*vsync)
		case "back-buffers":
			cfg.BackBuffers = *buffers
		case "frames-in-flight":
			cfg.FramesInFlight = *inFlight
		case "data":
			cfg.DataRoot = *data
		case "log-level":
			err = cfg.LogLevel.UnmarshalText([]byte(*level))
		case "recover-occluded":
			cfg.RecoverOccluded = *recoverOccluded
		}
	})
	if err != nil {
		return framecore.Config{}, fl, err
	}
	return cfg, fl, cfg.Validate()
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid switch %q: want on or off", s)
	}
	return b, nil
}
