package framecore

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framecore/shader"
)

const (
	// MaxSyncFrames is the default number of frames in flight.
	MaxSyncFrames = 2

	// DefaultBackBuffers is the default swapchain length.
	DefaultBackBuffers = 3

	// DataDirEnv overrides Config.DataRoot when set.
	DataDirEnv = "FRAMECORE_DATA_DIR"
)

// Duration is a time.Duration that reads and writes as text ("250ms").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the settings of a Context and the demo driving it.
type Config struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`

	// BackBuffers is the swapchain length, 2 or 3.
	BackBuffers int `toml:"back_buffers"`

	// FramesInFlight is the number of frame slots. It may not exceed
	// BackBuffers.
	FramesInFlight int `toml:"frames_in_flight"`

	// DescriptorCapacity sizes both the persistent and the per-frame
	// descriptor heaps.
	DescriptorCapacity uint32 `toml:"descriptor_capacity"`

	// DataRoot is the directory shader paths are resolved against.
	DataRoot string `toml:"data_root"`

	// Backend names the preferred backend ("dx12", "vulkan", "metal",
	// "gles", "noop"). Empty picks the first available by priority.
	Backend string `toml:"backend"`

	VSync bool `toml:"vsync"`

	// RecoverOccluded turns a present on an occluded surface into a
	// warning instead of a fatal error.
	RecoverOccluded bool `toml:"recover_occluded"`

	// WaitTimeout bounds every fence wait. Zero waits forever.
	WaitTimeout Duration `toml:"wait_timeout"`

	// ShaderModel is the profile model, "6_7" by default.
	ShaderModel string `toml:"shader_model"`

	// ShaderTarget forces the shader output format ("spirv", "dxil",
	// "hlsl"). Empty follows the backend.
	ShaderTarget string `toml:"shader_target"`

	LogLevel slog.Level `toml:"log_level"`
}

// DefaultConfig returns the defaults, with DataRoot taken from
// FRAMECORE_DATA_DIR when it is set.
func DefaultConfig() Config {
	cfg := Config{
		Width:              1024,
		Height:             860,
		BackBuffers:        DefaultBackBuffers,
		FramesInFlight:     MaxSyncFrames,
		DescriptorCapacity: 1024,
		DataRoot:           "./data",
		VSync:              true,
		ShaderModel:        shader.DefaultModel.String(),
		LogLevel:           slog.LevelInfo,
	}
	if dir := os.Getenv(DataDirEnv); dir != "" {
		cfg.DataRoot = dir
	}
	return cfg
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are an
// error. FRAMECORE_DATA_DIR still wins over the file's data_root.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("framecore: read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("framecore: config %s: %w\n%s", path, ErrInvalidConfig, strict.String())
		}
		return cfg, fmt.Errorf("framecore: parse config %s: %w", path, err)
	}
	if dir := os.Getenv(DataDirEnv); dir != "" {
		cfg.DataRoot = dir
	}
	return cfg, cfg.Validate()
}

// Encode writes cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.BackBuffers < 2 || c.BackBuffers > 3:
		return fmt.Errorf("%w: back_buffers %d not in [2, 3]", ErrInvalidConfig, c.BackBuffers)
	case c.FramesInFlight < 1 || c.FramesInFlight > c.BackBuffers:
		return fmt.Errorf("%w: frames_in_flight %d not in [1, %d]", ErrInvalidConfig, c.FramesInFlight, c.BackBuffers)
	case c.WaitTimeout < 0:
		return fmt.Errorf("%w: negative wait_timeout", ErrInvalidConfig)
	}
	if c.Backend != "" {
		if _, ok := backendVariant(c.Backend); !ok {
			return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
		}
	}
	if c.ShaderModel != "" {
		if _, err := shader.ParseModel(c.ShaderModel); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.ShaderTarget != "" {
		if _, err := shader.ParseTarget(c.ShaderTarget); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c Config) timeout() time.Duration { return time.Duration(c.WaitTimeout) }

func (c Config) shaderOptions(backend string) ([]shader.Option, error) {
	model := shader.DefaultModel
	if c.ShaderModel != "" {
		m, err := shader.ParseModel(c.ShaderModel)
		if err != nil {
			return nil, err
		}
		model = m
	}
	target := shader.TargetSPIRV
	if v, ok := backendVariant(backend); ok {
		target = shader.TargetFor(v)
	}
	if c.ShaderTarget != "" {
		t, err := shader.ParseTarget(strings.ToLower(c.ShaderTarget))
		if err != nil {
			return nil, err
		}
		target = t
	}
	return []shader.Option{shader.WithModel(model), shader.WithTarget(target)}, nil
}
