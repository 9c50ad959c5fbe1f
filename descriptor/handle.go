package descriptor

import "fmt"

// CPUHandle addresses a descriptor slot for CPU-side writes.
type CPUHandle uint64

// GPUHandle addresses a descriptor slot for shader-visible reads.
type GPUHandle uint64

// Handle identifies a contiguous run of slots starting at Index.
// The zero Handle is invalid.
type Handle struct {
	CPU   CPUHandle
	GPU   GPUHandle
	Index uint32

	stride uint32
}

// IsValid reports whether h was returned by a successful allocation.
func (h Handle) IsValid() bool {
	return h.CPU != 0
}

// Offset returns the handle n slots after h.
func (h Handle) Offset(n uint32) Handle {
	return Handle{
		CPU:    h.CPU + CPUHandle(uint64(n)*uint64(h.stride)),
		GPU:    h.GPU + GPUHandle(uint64(n)*uint64(h.stride)),
		Index:  h.Index + n,
		stride: h.stride,
	}
}

func (h Handle) String() string {
	if !h.IsValid() {
		return "descriptor.Handle(invalid)"
	}
	return fmt.Sprintf("descriptor.Handle(index=%d cpu=%#x gpu=%#x)", h.Index, uint64(h.CPU), uint64(h.GPU))
}
