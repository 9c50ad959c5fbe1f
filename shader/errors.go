package shader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when compiling before Init or after
	// Close.
	ErrNotInitialized = errors.New("shader: cache not initialized")

	// ErrSourceNotFound is returned when a shader file does not exist under
	// the data root. Errors carrying it also match fs.ErrNotExist.
	ErrSourceNotFound = errors.New("shader: source not found")

	// ErrUnsupportedStage is returned for stages the compiler cannot target.
	ErrUnsupportedStage = errors.New("shader: unsupported stage")

	// ErrEntryPointNotFound is returned when the module has no entry point
	// of the requested name and stage.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")

	// ErrInvalidPath is returned for paths escaping the data root.
	ErrInvalidPath = errors.New("shader: invalid path")

	// ErrAlreadyWatching is returned by a second Watch.
	ErrAlreadyWatching = errors.New("shader: already watching")
)

// CompileError describes a failed compilation.
type CompileError struct {
	Path        string
	Entry       string
	Stage       Stage
	Target      Target
	Phase       string
	Diagnostics []string
	Err         error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shader: %s %s:%s (%s)", e.Phase, e.Path, e.Entry, e.Stage)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, d := range e.Diagnostics {
		b.WriteString("\n\t")
		b.WriteString(d)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }
