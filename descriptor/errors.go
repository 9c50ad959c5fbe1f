package descriptor

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is matched by every CapacityError.
	ErrCapacity = errors.New("descriptor: heap capacity exceeded")

	// ErrZeroCount is returned when Allocate is asked for no slots.
	ErrZeroCount = errors.New("descriptor: allocation count must be positive")

	// ErrInvalidHandle is returned when a handle does not belong to the heap
	// or addresses a slot that is not allocated.
	ErrInvalidHandle = errors.New("descriptor: handle outside allocated range")
)

// CapacityError reports an allocation that would overrun the heap.
type CapacityError struct {
	Kind      HeapKind
	Requested uint32
	Cursor    uint32
	Capacity  uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("descriptor: %s heap capacity exceeded: requested %d slots at cursor %d, capacity %d",
		e.Kind, e.Requested, e.Cursor, e.Capacity)
}

// Is reports whether target is ErrCapacity.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}
