package scene

import (
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimerDelta(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	tm := newTimer(clk.now)

	tm.BeginFrame()
	clk.advance(16 * time.Millisecond)
	tm.EndFrame()

	if got := tm.Delta(); got != 16*time.Millisecond {
		t.Errorf("Delta() = %v, want 16ms", got)
	}
	if got := tm.Frame(); got != 1 {
		t.Errorf("Frame() = %d, want 1", got)
	}
	if got := tm.FPS(); got != 0 {
		t.Errorf("FPS() = %v before the first second, want 0", got)
	}
}

func TestTimerFPSWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	tm := newTimer(clk.now)

	rolled := 0
	for range 50 {
		tm.BeginFrame()
		clk.advance(15 * time.Millisecond)
		if tm.EndFrame() {
			rolled++
		}
		clk.advance(5 * time.Millisecond)
	}
	// The 51st frame ends at 1015ms and closes the window.
	tm.BeginFrame()
	clk.advance(15 * time.Millisecond)
	if tm.EndFrame() {
		rolled++
	}

	if rolled != 1 {
		t.Fatalf("FPS window rolled %d times, want 1", rolled)
	}
	if got := tm.Frame(); got != 0 {
		t.Errorf("Frame() after rollover = %d, want 0", got)
	}
	// 51 frames over 1.015s.
	want := 51 / 1.015
	if got := tm.FPS(); got < want-0.01 || got > want+0.01 {
		t.Errorf("FPS() = %v, want %v", got, want)
	}
}

func TestTimerSnapshot(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	tm := newTimer(clk.now)

	for range 3 {
		tm.BeginFrame()
		clk.advance(10 * time.Millisecond)
		tm.EndFrame()
	}
	clk.advance(5 * time.Millisecond)

	ft := tm.Time()
	if ft.Frame != 3 {
		t.Errorf("Frame = %d, want 3", ft.Frame)
	}
	if ft.Total != 35*time.Millisecond {
		t.Errorf("Total = %v, want 35ms", ft.Total)
	}
	if ft.Seconds() != 0.01 {
		t.Errorf("Seconds() = %v, want 0.01", ft.Seconds())
	}
}
