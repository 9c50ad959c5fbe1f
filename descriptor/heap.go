package descriptor

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framecore/internal/logging"
)

// DefaultCapacity is the slot count of a heap created with capacity 0.
const DefaultCapacity = 1024

// HeapKind selects the class of descriptors a heap stores.
type HeapKind uint8

const (
	// KindResource holds constant buffer and shader resource views.
	// It is the only shader-visible kind.
	KindResource HeapKind = iota
	// KindRenderTarget holds render target views of back-buffers.
	KindRenderTarget
	// KindSampler holds sampler descriptors.
	KindSampler
)

func (k HeapKind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindRenderTarget:
		return "render-target"
	case KindSampler:
		return "sampler"
	default:
		return fmt.Sprintf("HeapKind(%d)", uint8(k))
	}
}

// ShaderVisible reports whether GPU handles of this kind are meaningful.
func (k HeapKind) ShaderVisible() bool {
	return k == KindResource || k == KindSampler
}

// defaultStride mirrors typical descriptor increment sizes on desktop GPUs.
func (k HeapKind) defaultStride() uint32 {
	switch k {
	case KindSampler:
		return 16
	default:
		return 32
	}
}

// Strider is implemented by devices that report a descriptor increment
// size. Devices without it get the per-kind default.
type Strider interface {
	DescriptorStride(kind HeapKind) uint32
}

// Descriptor is the content of one slot.
type Descriptor struct {
	// Resource is the binding the slot describes (buffer, texture view or
	// sampler), in the form bind groups consume.
	Resource gputypes.BindingResource

	// Size is the bound byte size for constant views.
	Size uint64

	// Format is the view format for shader resource views.
	Format gputypes.TextureFormat

	// Label is an optional debug name.
	Label string
}

// heapIDs spaces heaps apart in handle space so handles never collide.
var heapIDs atomic.Uint64

const (
	cpuSpace = uint64(1) << 48
	gpuSpace = uint64(1) << 62
	heapSpan = uint64(1) << 32
)

// Heap is a bump-pointer descriptor allocator. It is not safe for
// concurrent use; a frame's single recording thread owns it.
type Heap struct {
	kind     HeapKind
	capacity uint32
	stride   uint32
	cursor   uint32
	cpuBase  CPUHandle
	gpuBase  GPUHandle
	slots    []Descriptor
	logger   *slog.Logger
}

// Option configures a Heap.
type Option func(*Heap)

// WithStrider takes the slot stride from s.
func WithStrider(s Strider) Option {
	return func(h *Heap) {
		if s == nil {
			return
		}
		if stride := s.DescriptorStride(h.kind); stride > 0 {
			h.stride = stride
		}
	}
}

// WithLogger sets the heap's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Heap) { h.logger = logging.OrNop(l) }
}

// New allocates a heap of capacity slots. A capacity of 0 selects
// DefaultCapacity.
func New(kind HeapKind, capacity uint32, opts ...Option) (*Heap, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	h := &Heap{
		kind:     kind,
		capacity: capacity,
		stride:   kind.defaultStride(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if uint64(h.capacity)*uint64(h.stride) >= heapSpan {
		return nil, fmt.Errorf("descriptor: %s heap of %d slots with stride %d is too large", kind, capacity, h.stride)
	}

	id := heapIDs.Add(1)
	h.cpuBase = CPUHandle(cpuSpace + id*heapSpan)
	if kind.ShaderVisible() {
		h.gpuBase = GPUHandle(gpuSpace + id*heapSpan)
	}
	h.slots = make([]Descriptor, capacity)

	h.logger.Debug("descriptor heap created",
		"kind", kind.String(), "capacity", capacity, "stride", h.stride)
	return h, nil
}

// Allocate returns count contiguous slots starting at the cursor and
// advances the cursor.
func (h *Heap) Allocate(count uint32) (Handle, error) {
	if count == 0 {
		return Handle{}, ErrZeroCount
	}
	if uint64(h.cursor)+uint64(count) > uint64(h.capacity) {
		err := &CapacityError{Kind: h.kind, Requested: count, Cursor: h.cursor, Capacity: h.capacity}
		h.logger.Error("descriptor heap exhausted", "err", err)
		return Handle{}, err
	}
	handle := h.HandleAt(h.cursor)
	h.cursor += count
	return handle, nil
}

// Reset makes every slot available again. Handles allocated before the
// reset are rejected until their slots are allocated again.
func (h *Heap) Reset() {
	h.cursor = 0
}

// Write stores d in the slot addressed by handle. The slot must lie below
// the cursor.
func (h *Heap) Write(handle Handle, d Descriptor) error {
	idx, err := h.indexOf(handle)
	if err != nil {
		return err
	}
	h.slots[idx] = d
	return nil
}

// Lookup returns the descriptor stored in the slot addressed by handle.
func (h *Heap) Lookup(handle Handle) (Descriptor, error) {
	idx, err := h.indexOf(handle)
	if err != nil {
		return Descriptor{}, err
	}
	return h.slots[idx], nil
}

// HandleAt returns the handle of slot index without allocating it.
func (h *Heap) HandleAt(index uint32) Handle {
	off := uint64(index) * uint64(h.stride)
	handle := Handle{
		CPU:    h.cpuBase + CPUHandle(off),
		Index:  index,
		stride: h.stride,
	}
	if h.gpuBase != 0 {
		handle.GPU = h.gpuBase + GPUHandle(off)
	}
	return handle
}

// Kind returns the heap kind.
func (h *Heap) Kind() HeapKind { return h.kind }

// Capacity returns the slot count.
func (h *Heap) Capacity() uint32 { return h.capacity }

// Stride returns the distance in bytes between adjacent handles.
func (h *Heap) Stride() uint32 { return h.stride }

// Cursor returns the index of the next free slot.
func (h *Heap) Cursor() uint32 { return h.cursor }

// CPUStart returns the handle of slot 0.
func (h *Heap) CPUStart() CPUHandle { return h.cpuBase }

// GPUStart returns the shader-visible handle of slot 0, or 0 for
// CPU-only heaps.
func (h *Heap) GPUStart() GPUHandle { return h.gpuBase }

func (h *Heap) indexOf(handle Handle) (uint32, error) {
	if handle.CPU < h.cpuBase {
		return 0, ErrInvalidHandle
	}
	off := uint64(handle.CPU - h.cpuBase)
	if off%uint64(h.stride) != 0 {
		return 0, ErrInvalidHandle
	}
	idx := off / uint64(h.stride)
	if idx >= uint64(h.cursor) {
		return 0, fmt.Errorf("%w: slot %d not allocated, cursor %d", ErrInvalidHandle, idx, h.cursor)
	}
	return uint32(idx), nil
}
