package scene

import "time"

// FrameTime is the timing snapshot handed to Scene.Update.
type FrameTime struct {
	// Delta is the CPU time of the last completed frame.
	Delta time.Duration

	// Total is the time since the timer was created.
	Total time.Duration

	// Frame counts completed frames since the timer was created.
	Frame uint64

	// FPS is the frame rate measured over the last full second, 0 until
	// the first second has elapsed.
	FPS float64
}

// Seconds returns Delta as fractional seconds.
func (t FrameTime) Seconds() float64 { return t.Delta.Seconds() }

// Timer measures frame durations and a once-per-second frame rate.
//
// BeginFrame and EndFrame bracket one frame. Delta is the time between
// the two calls of the last frame; the FPS window restarts every time at
// least one second has passed since the previous window closed.
type Timer struct {
	now func() time.Time

	created time.Time
	start   time.Time
	window  time.Time

	delta  time.Duration
	fps    float64
	frame  uint32
	frames uint64
}

// NewTimer returns a timer on the monotonic wall clock.
func NewTimer() *Timer {
	return newTimer(time.Now)
}

func newTimer(now func() time.Time) *Timer {
	t := now()
	return &Timer{now: now, created: t, start: t, window: t}
}

// BeginFrame marks the start of a frame.
func (t *Timer) BeginFrame() {
	t.start = t.now()
}

// EndFrame marks the end of a frame and reports whether the FPS window
// rolled over.
func (t *Timer) EndFrame() bool {
	now := t.now()
	t.delta = now.Sub(t.start)
	elapsed := now.Sub(t.window)

	t.frame++
	t.frames++

	if elapsed < time.Second {
		return false
	}
	t.fps = float64(t.frame) / elapsed.Seconds()
	t.window = now
	t.frame = 0
	return true
}

// Delta returns the duration of the last completed frame.
func (t *Timer) Delta() time.Duration { return t.delta }

// FPS returns the last measured frame rate.
func (t *Timer) FPS() float64 { return t.fps }

// Frame returns the number of frames in the current FPS window. It drops
// to 0 right after the window rolls over.
func (t *Timer) Frame() uint32 { return t.frame }

// Time returns the current snapshot.
func (t *Timer) Time() FrameTime {
	return FrameTime{
		Delta: t.delta,
		Total: t.now().Sub(t.created),
		Frame: t.frames,
		FPS:   t.fps,
	}
}
