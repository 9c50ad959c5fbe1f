package scene

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/internal/haltest"
)

// recordingScene logs every hook it receives.
type recordingScene struct {
	calls     []string
	times     []FrameTime
	failAt    int
	renderErr error
	encoders  int
	onUpdate  func()
}

func (s *recordingScene) Init(*framecore.Context) error {
	s.calls = append(s.calls, "init")
	return nil
}

func (s *recordingScene) Update(t FrameTime) error {
	s.calls = append(s.calls, "update")
	s.times = append(s.times, t)
	if s.onUpdate != nil {
		s.onUpdate()
	}
	return nil
}

func (s *recordingScene) Render(ctx *framecore.Context) error {
	s.calls = append(s.calls, "render")
	if ctx.CommandEncoder() != nil {
		s.encoders++
	}
	if s.renderErr != nil && len(s.times) == s.failAt {
		return s.renderErr
	}
	return nil
}

func (s *recordingScene) Release() {
	s.calls = append(s.calls, "release")
}

type fixture struct {
	journal *haltest.Journal
	surface *haltest.Surface
	fences  []*haltest.Fence
	ctx     *framecore.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{journal: &haltest.Journal{}}
	dev := haltest.NewDevice(f.journal)
	f.surface = haltest.NewSurface(f.journal)

	cfg := framecore.DefaultConfig()
	cfg.Width, cfg.Height = 800, 600
	cfg.BackBuffers, cfg.FramesInFlight = 2, 2
	cfg.VSync = false

	ctx, err := framecore.New(cfg, framecore.SurfaceTarget{},
		framecore.WithBackend(haltest.NewBackend(dev, f.surface)),
		framecore.WithFenceFactory(haltest.FenceFactory(f.journal, &f.fences)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	f.ctx = ctx
	return f
}

func TestRunnerDrivesFrames(t *testing.T) {
	f := newFixture(t)
	s := &recordingScene{}

	r := NewRunner(f.ctx, s, WithFrames(4))
	require.NoError(t, r.Run(context.Background()))

	want := []string{"init"}
	for range 4 {
		want = append(want, "update", "render")
	}
	want = append(want, "release")
	assert.Equal(t, want, s.calls)
	assert.Equal(t, 4, s.encoders)

	for i, ft := range s.times {
		assert.Equal(t, uint64(i), ft.Frame, "update %d", i)
	}
	assert.Equal(t, uint64(4), r.Stats().Frames)
	assert.Equal(t, framecore.StateReleased, f.ctx.State())
	assert.Equal(t, 4, f.journal.Count(haltest.EventPresent))
}

func TestRunnerStopsOnContextDone(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := &recordingScene{}
	s.onUpdate = func() {
		if len(s.times) == 3 {
			cancel()
		}
	}
	r := NewRunner(f.ctx, s)
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, uint64(3), r.Stats().Frames)
	assert.Equal(t, "release", s.calls[len(s.calls)-1])
}

func TestRunnerStop(t *testing.T) {
	f := newFixture(t)
	s := &recordingScene{}
	var r *Runner
	s.onUpdate = func() {
		if len(s.times) == 2 {
			r.Stop()
		}
	}
	r = NewRunner(f.ctx, s, WithFrames(10))
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, uint64(2), r.Stats().Frames)
	assert.ErrorIs(t, r.Step(), ErrStopped)
}

func TestRunnerRenderFailureAbortsFrame(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	s := &recordingScene{renderErr: boom, failAt: 2}

	r := NewRunner(f.ctx, s)
	require.NoError(t, r.Step())
	err := r.Step()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "scene: render")
	assert.Equal(t, framecore.StateReady, f.ctx.State())
	assert.Equal(t, 1, f.ctx.FrameIndex())

	require.NoError(t, r.Step())
	assert.Equal(t, Stats{Frames: 2, Aborted: 1, LastDelta: r.Stats().LastDelta, FPS: r.Stats().FPS}, r.Stats())
	assert.Equal(t, 2, f.journal.Count(haltest.EventSubmit))
	require.NoError(t, r.Close())
}

func TestRunnerAppliesResizeBetweenFrames(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(f.ctx, &recordingScene{})

	require.NoError(t, r.Step())
	r.Resize(640, 480)
	r.Resize(1024, 768)
	require.NoError(t, r.Step())

	assert.Equal(t, uint32(1024), f.ctx.Width())
	assert.Equal(t, uint32(768), f.ctx.Height())
	assert.Equal(t, uint64(1), r.Stats().Resizes)
	assert.Equal(t, uint32(1024), f.surface.LastConfig().Width)
	require.NoError(t, r.Close())
}

func TestRunnerInitFailureReleasesScene(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("no assets")
	inits := 0
	var stateAtRelease framecore.State
	s := Funcs{
		InitFunc: func(*framecore.Context) error {
			inits++
			return boom
		},
		ReleaseFunc: func() { stateAtRelease = f.ctx.State() },
	}

	r := NewRunner(f.ctx, s, WithFrames(1))
	require.ErrorIs(t, r.Step(), boom)
	require.ErrorIs(t, r.Step(), boom)
	assert.Equal(t, 1, inits)

	require.NoError(t, r.Close())
	assert.Equal(t, framecore.StateReady, stateAtRelease, "Release runs before the context closes")
	assert.Equal(t, framecore.StateReleased, f.ctx.State())
}

func TestRunnerFPSReport(t *testing.T) {
	f := newFixture(t)
	clk := &fakeClock{}
	tm := newTimer(clk.now)

	var reports []FrameTime
	s := Funcs{UpdateFunc: func(FrameTime) error {
		clk.advance(400 * time.Millisecond)
		return nil
	}}
	r := NewRunner(f.ctx, s, WithTimer(tm), WithFrames(5),
		WithFPSReport(func(ft FrameTime) { reports = append(reports, ft) }))
	require.NoError(t, r.Run(context.Background()))

	// Frames end at 0.4s, 0.8s, 1.2s, 1.6s, 2.0s: one window closes at
	// 1.2s with 3 frames and the next one is still open at 2.0s.
	require.Len(t, reports, 1)
	assert.InDelta(t, 2.5, reports[0].FPS, 1e-9)
	assert.Equal(t, uint64(3), reports[0].Frame)
}

func TestRunnerCloseIdempotent(t *testing.T) {
	f := newFixture(t)
	s := &recordingScene{}
	r := NewRunner(f.ctx, s)
	require.NoError(t, r.Step())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"init", "update", "render", "release"}, s.calls)
}
