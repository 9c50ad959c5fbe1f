// Package fence provides CPU-observable timelines of GPU progress.
//
// A [Fence] is a monotonically increasing counter. Signal enqueues a value
// that is reached once every command buffer submitted to the queue so far
// has completed; Wait blocks the caller until a value is reached. Values
// must strictly increase and are never reused.
//
// [Queue] wraps a hal.Queue so fences can see the submission index of the
// most recent Submit.
package fence

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

var (
	// ErrNotMonotonic is returned when a signal value does not exceed the
	// previous one.
	ErrNotMonotonic = errors.New("fence: signal value must increase")

	// ErrNeverSignaled is returned when waiting for a value that was never
	// signaled; such a wait could not complete.
	ErrNeverSignaled = errors.New("fence: waiting for a value that was never signaled")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("fence: wait timed out")

	// ErrDestroyed is returned by operations on a destroyed fence.
	ErrDestroyed = errors.New("fence: destroyed")
)

// Fence is a timeline of GPU completion.
type Fence interface {
	// Signal enqueues value behind all work submitted so far.
	Signal(value uint64) error
	// Completed returns the highest value known to be reached.
	Completed() uint64
	// Wait blocks until value is reached.
	Wait(value uint64) error
	// Label returns the debug name.
	Label() string
	// Destroy releases the fence.
	Destroy()
}

// Factory creates fences. Components take a Factory so tests can swap in
// instrumented fences.
type Factory func(label string) (Fence, error)

// Queue is a hal.Queue that remembers the last submission index.
type Queue struct {
	hal.Queue

	mu   sync.Mutex
	last uint64
}

// WrapQueue returns q wrapped for fence tracking. Wrapping an already
// wrapped queue returns it unchanged.
func WrapQueue(q hal.Queue) *Queue {
	if fq, ok := q.(*Queue); ok {
		return fq
	}
	return &Queue{Queue: q}
}

// Submit submits command buffers and records the submission index.
func (q *Queue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	idx, err := q.Queue.Submit(cmds)
	if err != nil {
		return 0, err
	}
	q.mu.Lock()
	if idx > q.last {
		q.last = idx
	}
	q.mu.Unlock()
	return idx, nil
}

// LastSubmission returns the index returned by the latest Submit.
func (q *Queue) LastSubmission() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

type mark struct {
	value      uint64
	submission uint64
}

// QueueFence implements Fence over a queue's submission indices. Blocking
// waits drain the device with WaitIdle, the only blocking primitive hal
// exposes for queue progress.
type QueueFence struct {
	device  hal.Device
	queue   *Queue
	label   string
	timeout time.Duration

	mu        sync.Mutex
	signaled  uint64
	completed uint64
	pending   []mark
	destroyed bool
}

// NewQueueFence creates a fence on queue. A zero timeout waits forever.
func NewQueueFence(device hal.Device, queue *Queue, label string, timeout time.Duration) *QueueFence {
	return &QueueFence{device: device, queue: queue, label: label, timeout: timeout}
}

// NewFactory returns a Factory producing QueueFences.
func NewFactory(device hal.Device, queue *Queue, timeout time.Duration) Factory {
	return func(label string) (Fence, error) {
		return NewQueueFence(device, queue, label, timeout), nil
	}
}

// Signal enqueues value behind the queue's latest submission.
func (f *QueueFence) Signal(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed {
		return ErrDestroyed
	}
	if value <= f.signaled {
		return fmt.Errorf("%w: %s signaled %d after %d", ErrNotMonotonic, f.label, value, f.signaled)
	}
	f.signaled = value
	f.pending = append(f.pending, mark{value: value, submission: f.queue.LastSubmission()})
	f.retireLocked(f.queue.PollCompleted())
	return nil
}

// Completed returns the highest value whose submission has completed.
func (f *QueueFence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retireLocked(f.queue.PollCompleted())
	return f.completed
}

// Wait blocks until value is reached. The queue only reports progress as
// a whole, so waiting on an incomplete value drains the device and
// completes every other fence on the queue as well.
func (f *QueueFence) Wait(value uint64) error {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return ErrDestroyed
	}
	if value > f.signaled {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s value %d, last signaled %d", ErrNeverSignaled, f.label, value, f.signaled)
	}
	f.retireLocked(f.queue.PollCompleted())
	done := f.completed >= value
	f.mu.Unlock()
	if done {
		return nil
	}

	if err := f.drain(); err != nil {
		return fmt.Errorf("fence: %s wait for %d: %w", f.label, value, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.retireLocked(f.queue.PollCompleted())
	if f.completed < value {
		// WaitIdle returned, so everything submitted before the signal is done.
		f.retireLocked(f.queue.LastSubmission())
	}
	return nil
}

// Label returns the debug name.
func (f *QueueFence) Label() string { return f.label }

// Destroy marks the fence unusable.
func (f *QueueFence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.pending = nil
	f.mu.Unlock()
}

func (f *QueueFence) drain() error {
	if f.timeout <= 0 {
		return f.device.WaitIdle()
	}
	done := make(chan error, 1)
	go func() { done <- f.device.WaitIdle() }()
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// Caller must hold f.mu.
func (f *QueueFence) retireLocked(finished uint64) {
	n := 0
	for _, m := range f.pending {
		if m.submission > finished {
			break
		}
		f.completed = m.value
		n++
	}
	f.pending = f.pending[n:]
}
