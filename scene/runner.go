package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/internal/logging"
)

// ErrStopped is returned by Step after Stop was called.
var ErrStopped = errors.New("scene: runner stopped")

// Stats summarizes the frames a Runner drove.
type Stats struct {
	// Frames is the number of presented frames.
	Frames uint64
	// Aborted counts frames dropped because Update or Render failed.
	Aborted uint64
	// Resizes counts applied resize requests.
	Resizes uint64
	// LastDelta is the duration of the last frame.
	LastDelta time.Duration
	// FPS is the last measured frame rate.
	FPS float64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFrames stops Run after n presented frames. 0 runs until the
// context passed to Run is done.
func WithFrames(n uint64) RunnerOption {
	return func(r *Runner) { r.limit = n }
}

// WithTimer replaces the frame timer.
func WithTimer(t *Timer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.timer = t
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.OrNop(l) }
}

// WithFPSReport calls fn every time the timer's FPS window rolls over.
func WithFPSReport(fn func(FrameTime)) RunnerOption {
	return func(r *Runner) { r.onFPS = fn }
}

// Runner drives a Scene through a framecore.Context.
//
// Run, Step and Close must be called from the goroutine that owns the
// Context. Resize and Stop may be called from any goroutine; a resize is
// applied between frames.
type Runner struct {
	fc     *framecore.Context
	scene  Scene
	timer  *Timer
	limit  uint64
	logger *slog.Logger
	onFPS  func(FrameTime)

	initialized bool
	attempted   bool
	initErr     error
	released    bool
	stats       Stats

	mu      sync.Mutex
	pending *[2]uint32
	stopped bool
}

// NewRunner returns a runner for s on fc. The scene is initialized by the
// first Run or Step.
func NewRunner(fc *framecore.Context, s Scene, opts ...RunnerOption) *Runner {
	r := &Runner{
		fc:     fc,
		scene:  s,
		timer:  NewTimer(),
		logger: framecore.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resize requests new back-buffer dimensions. The last request before a
// frame wins.
func (r *Runner) Resize(width, height uint32) {
	r.mu.Lock()
	r.pending = &[2]uint32{width, height}
	r.mu.Unlock()
}

// Stop makes Run return after the frame in progress.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// Stats returns the runner's counters.
func (r *Runner) Stats() Stats { return r.stats }

// Timer returns the frame timer.
func (r *Runner) Timer() *Timer { return r.timer }

// Run initializes the scene and steps frames until ctx is done, Stop is
// called, the frame limit is reached or a frame fails. The scene is
// released and the context closed before Run returns. A done ctx is not
// an error.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()

	for r.limit == 0 || r.stats.Frames < r.limit {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.Step(); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Step runs one frame: pending resize, BeginFrame, Update, Render,
// EndFrame. A failing Update or Render aborts the frame and its error is
// returned; the runner can step again afterwards.
func (r *Runner) Step() error {
	if err := r.init(); err != nil {
		return err
	}

	r.mu.Lock()
	stopped := r.stopped
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	if pending != nil {
		if err := r.fc.Resize(pending[0], pending[1]); err != nil {
			return err
		}
		r.stats.Resizes++
	}

	r.timer.BeginFrame()
	if err := r.fc.BeginFrame(); err != nil {
		return err
	}

	if err := r.record(); err != nil {
		r.stats.Aborted++
		if aerr := r.fc.AbortFrame(); aerr != nil {
			return errors.Join(err, aerr)
		}
		return err
	}

	if err := r.fc.EndFrame(r.fc.Config().VSync); err != nil {
		return err
	}
	r.stats.Frames++

	if r.timer.EndFrame() {
		t := r.timer.Time()
		r.logger.Debug("frame rate", "fps", t.FPS, "frame", t.Frame)
		if r.onFPS != nil {
			r.onFPS(t)
		}
	}
	r.stats.LastDelta = r.timer.Delta()
	r.stats.FPS = r.timer.FPS()
	return nil
}

func (r *Runner) record() error {
	if err := r.scene.Update(r.timer.Time()); err != nil {
		return fmt.Errorf("scene: update: %w", err)
	}
	if err := r.scene.Render(r.fc); err != nil {
		return fmt.Errorf("scene: render: %w", err)
	}
	return nil
}

func (r *Runner) init() error {
	if r.released {
		return ErrStopped
	}
	if r.initialized {
		return nil
	}
	if r.initErr != nil {
		return r.initErr
	}
	r.attempted = true
	if err := r.scene.Init(r.fc); err != nil {
		r.initErr = fmt.Errorf("scene: init: %w", err)
		return r.initErr
	}
	r.initialized = true
	r.logger.Info("scene initialized",
		"width", r.fc.Width(), "height", r.fc.Height(), "backend", r.fc.Backend())
	return nil
}

// Close waits for the GPU, releases the scene and closes the context.
// It is idempotent.
func (r *Runner) Close() error {
	if r.released {
		return nil
	}
	r.released = true

	var errs []error
	if r.fc.State() == framecore.StateRecording {
		errs = append(errs, r.fc.AbortFrame())
	}
	if r.attempted {
		if r.fc.State() != framecore.StateReleased {
			errs = append(errs, r.fc.WaitIdle())
		}
		r.scene.Release()
	}
	errs = append(errs, r.fc.Close())
	r.logger.Info("runner closed", "frames", r.stats.Frames, "aborted", r.stats.Aborted)
	return errors.Join(errs...)
}
