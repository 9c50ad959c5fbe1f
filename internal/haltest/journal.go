package haltest

import (
	"fmt"
	"sync"
)

// Event kinds recorded by the doubles.
const (
	EventBeginEncoding = "begin"
	EventEndEncoding   = "end"
	EventResetAll      = "reset"
	EventTransition    = "transition"
	EventCopy          = "copy"
	EventSubmit        = "submit"
	EventPresent       = "present"
	EventAcquire       = "acquire"
	EventConfigure     = "configure"
	EventUnconfigure   = "unconfigure"
	EventWaitIdle      = "wait-idle"
	EventFenceSignal   = "fence-signal"
	EventFenceWait     = "fence-wait"
	EventLatencyWait   = "latency-wait"
	EventCreateBuffer  = "create-buffer"
	EventDestroyBuffer = "destroy-buffer"
	EventCreateView    = "create-view"
	EventDestroyView   = "destroy-view"
	EventCreateGroup   = "create-group"
	EventDestroyGroup  = "destroy-group"
	EventWriteBuffer   = "write-buffer"
)

// Event is one journal entry. Name identifies the object (encoder or fence
// label) and Value carries a fence value or count where relevant.
type Event struct {
	Kind  string
	Name  string
	Value uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s=%d)", e.Kind, e.Name, e.Value)
}

// Journal is an append-only, concurrency-safe event log.
type Journal struct {
	mu     sync.Mutex
	events []Event
}

// Record appends an event.
func (j *Journal) Record(kind, name string, value uint64) {
	j.mu.Lock()
	j.events = append(j.events, Event{Kind: kind, Name: name, Value: value})
	j.mu.Unlock()
}

// Events returns a copy of all events.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Filter returns the events of the given kinds, in order.
func (j *Journal) Filter(kinds ...string) []Event {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Event
	for _, e := range j.Events() {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of events of kind.
func (j *Journal) Count(kind string) int {
	return len(j.Filter(kind))
}

// Reset clears the journal.
func (j *Journal) Reset() {
	j.mu.Lock()
	j.events = nil
	j.mu.Unlock()
}
