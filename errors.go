package framecore

import (
	"errors"
	"fmt"

	"github.com/gogpu/framecore/fence"
)

var (
	// ErrAlreadyRecording is returned by BeginFrame when a frame is open.
	ErrAlreadyRecording = errors.New("framecore: frame already recording")

	// ErrNotRecording is returned by EndFrame when no frame is open.
	ErrNotRecording = errors.New("framecore: no frame recording")

	// ErrReleased is returned by every operation after Close.
	ErrReleased = errors.New("framecore: context released")

	// ErrPresentOccluded reports a present on a zero-area (minimized or
	// hidden) surface.
	ErrPresentOccluded = errors.New("framecore: presentation surface occluded")

	// ErrWaitTimeout is returned when a fence wait exceeds
	// Config.WaitTimeout.
	ErrWaitTimeout = fence.ErrTimeout

	// ErrNoAdapter is returned when no backend exposes a hardware adapter.
	ErrNoAdapter = errors.New("framecore: no suitable GPU adapter")

	// ErrInvalidConfig is wrapped by every Config.Validate failure.
	ErrInvalidConfig = errors.New("framecore: invalid config")
)

// FatalError reports a failure the context cannot recover from: GPU object
// creation, submission or presentation. The context must be closed after
// one is returned.
type FatalError struct {
	// Op names the failed step ("open device", "present", ...).
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("framecore: fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// StateError reports an operation called in a state that does not allow it.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("framecore: %s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
