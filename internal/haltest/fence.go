package haltest

import (
	"fmt"
	"sync"

	"github.com/gogpu/framecore/fence"
)

// Fence is a fence.Fence whose values only complete when waited on, so
// every reuse of a slot must go through Wait to be observed.
type Fence struct {
	label   string
	journal *Journal

	mu        sync.Mutex
	signaled  uint64
	completed uint64
	waits     int
	destroyed bool
}

// FenceFactory returns a fence.Factory producing journaled fences. Created
// fences are also appended to *created when it is non-nil.
func FenceFactory(journal *Journal, created *[]*Fence) fence.Factory {
	return func(label string) (fence.Fence, error) {
		f := &Fence{label: label, journal: journal}
		if created != nil {
			*created = append(*created, f)
		}
		return f, nil
	}
}

func (f *Fence) Signal(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value <= f.signaled {
		return fmt.Errorf("%w: %s %d after %d", fence.ErrNotMonotonic, f.label, value, f.signaled)
	}
	f.signaled = value
	f.journal.Record(EventFenceSignal, f.label, value)
	return nil
}

func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.signaled {
		return fmt.Errorf("%w: %s %d", fence.ErrNeverSignaled, f.label, value)
	}
	f.waits++
	if value > f.completed {
		f.completed = value
	}
	f.journal.Record(EventFenceWait, f.label, value)
	return nil
}

func (f *Fence) Label() string { return f.label }

func (f *Fence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.mu.Unlock()
}

// Signaled returns the last signaled value.
func (f *Fence) Signaled() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Waits returns the number of Wait calls.
func (f *Fence) Waits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// Destroyed reports whether Destroy was called.
func (f *Fence) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}
