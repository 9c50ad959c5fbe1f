package fence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// lagging keeps submissions incomplete until the device drains.
type lagging struct {
	noop.Queue
	mu        sync.Mutex
	submitted uint64
	done      uint64
}

func (q *lagging) Submit(_ []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted++
	return q.submitted, nil
}

func (q *lagging) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

type drainDevice struct {
	noop.Device
	q     *lagging
	idles int
	block chan struct{}
}

func (d *drainDevice) WaitIdle() error {
	if d.block != nil {
		<-d.block
	}
	d.idles++
	d.q.mu.Lock()
	d.q.done = d.q.submitted
	d.q.mu.Unlock()
	return nil
}

func newLagging() (*drainDevice, *Queue) {
	q := &lagging{}
	return &drainDevice{q: q}, WrapQueue(q)
}

func TestWrapQueueIdempotent(t *testing.T) {
	q := WrapQueue(&noop.Queue{})
	if got := WrapQueue(q); got != q {
		t.Errorf("WrapQueue(wrapped) = %p, want %p", got, q)
	}
}

func TestQueueTracksLastSubmission(t *testing.T) {
	q := WrapQueue(&noop.Queue{})
	for i := 1; i <= 3; i++ {
		idx, err := q.Submit(nil)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if q.LastSubmission() != idx {
			t.Errorf("LastSubmission() = %d, want %d", q.LastSubmission(), idx)
		}
	}
}

func TestSignalMonotonic(t *testing.T) {
	dev, q := newLagging()
	f := NewQueueFence(dev, q, "slot0", 0)

	if err := f.Signal(1); err != nil {
		t.Fatalf("Signal(1) error = %v", err)
	}
	if err := f.Signal(1); !errors.Is(err, ErrNotMonotonic) {
		t.Errorf("Signal(1) again error = %v, want ErrNotMonotonic", err)
	}
	if err := f.Signal(0); !errors.Is(err, ErrNotMonotonic) {
		t.Errorf("Signal(0) error = %v, want ErrNotMonotonic", err)
	}
	if err := f.Signal(5); err != nil {
		t.Errorf("Signal(5) error = %v", err)
	}
}

func TestCompletedFollowsQueue(t *testing.T) {
	dev, q := newLagging()
	f := NewQueueFence(dev, q, "slot0", 0)

	if _, err := q.Submit(nil); err != nil {
		t.Fatal(err)
	}
	if err := f.Signal(1); err != nil {
		t.Fatal(err)
	}
	if got := f.Completed(); got != 0 {
		t.Errorf("Completed() before drain = %d, want 0", got)
	}

	if err := f.Wait(1); err != nil {
		t.Fatalf("Wait(1) error = %v", err)
	}
	if got := f.Completed(); got != 1 {
		t.Errorf("Completed() after Wait = %d, want 1", got)
	}
	if dev.idles != 1 {
		t.Errorf("WaitIdle calls = %d, want 1", dev.idles)
	}
}

func TestWaitOnCompletedValueDoesNotBlock(t *testing.T) {
	dev, q := newLagging()
	f := NewQueueFence(dev, q, "slot0", 0)

	// Nothing submitted: the signal completes immediately.
	if err := f.Signal(1); err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(1); err != nil {
		t.Fatalf("Wait(1) error = %v", err)
	}
	if dev.idles != 0 {
		t.Errorf("WaitIdle calls = %d, want 0", dev.idles)
	}
}

func TestWaitDrainsEveryFence(t *testing.T) {
	dev, q := newLagging()
	slot0 := NewQueueFence(dev, q, "slot0", 0)
	slot1 := NewQueueFence(dev, q, "slot1", 0)

	for _, f := range []*QueueFence{slot0, slot1} {
		if _, err := q.Submit(nil); err != nil {
			t.Fatal(err)
		}
		if err := f.Signal(1); err != nil {
			t.Fatal(err)
		}
	}
	if err := slot0.Wait(1); err != nil {
		t.Fatalf("Wait(1) error = %v", err)
	}
	if got := slot1.Completed(); got != 1 {
		t.Errorf("slot1 Completed() after slot0 Wait = %d, want 1", got)
	}
	if err := slot1.Wait(1); err != nil {
		t.Fatalf("slot1 Wait(1) error = %v", err)
	}
	if dev.idles != 1 {
		t.Errorf("WaitIdle calls = %d, want 1", dev.idles)
	}
}

func TestWaitNeverSignaled(t *testing.T) {
	dev, q := newLagging()
	f := NewQueueFence(dev, q, "slot0", 0)

	if err := f.Wait(3); !errors.Is(err, ErrNeverSignaled) {
		t.Errorf("Wait(3) error = %v, want ErrNeverSignaled", err)
	}
}

func TestWaitTimeout(t *testing.T) {
	dev, q := newLagging()
	dev.block = make(chan struct{})
	defer close(dev.block)
	f := NewQueueFence(dev, q, "slot0", 10*time.Millisecond)

	if _, err := q.Submit(nil); err != nil {
		t.Fatal(err)
	}
	if err := f.Signal(1); err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(1); !errors.Is(err, ErrTimeout) {
		t.Errorf("Wait(1) error = %v, want ErrTimeout", err)
	}
}

func TestDestroyed(t *testing.T) {
	dev, q := newLagging()
	f := NewQueueFence(dev, q, "slot0", 0)
	f.Destroy()

	if err := f.Signal(1); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Signal() error = %v, want ErrDestroyed", err)
	}
	if err := f.Wait(1); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Wait() error = %v, want ErrDestroyed", err)
	}
}

func TestFactory(t *testing.T) {
	dev, q := newLagging()
	f, err := NewFactory(dev, q, 0)("frame")
	if err != nil {
		t.Fatal(err)
	}
	if f.Label() != "frame" {
		t.Errorf("Label() = %q, want %q", f.Label(), "frame")
	}
}
