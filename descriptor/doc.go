// Package descriptor implements a linear, frame-resettable descriptor heap.
//
// A Heap hands out fixed-stride slots from a pre-sized table. Each slot has
// a CPU handle, a GPU handle and an index; handles are the heap base plus
// index times stride, so a contiguous allocation can be walked with
// [Handle.Offset]. There is no per-slot free: [Heap.Reset] reclaims every
// slot at once, and callers must ensure no submitted GPU work still reads
// slots issued since the previous reset.
//
// Exceeding the capacity returns a [*CapacityError] (matching [ErrCapacity])
// rather than wrapping around, so overlapping handles are impossible.
package descriptor
