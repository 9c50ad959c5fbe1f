package framecore

import "fmt"

// State is the lifecycle state of a Context.
type State uint8

const (
	// StateUninitialized is the zero state, before New completes.
	StateUninitialized State = iota
	// StateReady accepts BeginFrame, Resize, WaitIdle and Close.
	StateReady
	// StateRecording is the span between BeginFrame and EndFrame.
	StateRecording
	// StateResizing is held while the surface is rebuilt.
	StateResizing
	// StateReleased is terminal.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateRecording:
		return "Recording"
	case StateResizing:
		return "Resizing"
	case StateReleased:
		return "Released"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
