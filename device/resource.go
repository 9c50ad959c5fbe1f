package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Kind is the semantic kind of a buffer. It decides the buffer's usage
// flags and the state it rests in after creation.
type Kind uint8

const (
	// KindVertex is a vertex buffer.
	KindVertex Kind = iota
	// KindIndex is an index buffer.
	KindIndex
	// KindUniform is a constant buffer.
	KindUniform
	// KindRaw is an untyped buffer read by shaders and copies.
	KindRaw

	kindCount
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "Vertex"
	case KindIndex:
		return "Index"
	case KindUniform:
		return "Uniform"
	case KindRaw:
		return "Raw"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool { return k < kindCount }

// FinalState returns the state a buffer of kind k rests in once uploaded.
func (k Kind) FinalState() State {
	switch k {
	case KindIndex:
		return StateIndex
	case KindRaw:
		return StateGenericRead
	default:
		return StateVertexAndConstant
	}
}

func (k Kind) usage() gputypes.BufferUsage {
	u := gputypes.BufferUsageCopyDst
	switch k {
	case KindVertex:
		u |= gputypes.BufferUsageVertex
	case KindIndex:
		u |= gputypes.BufferUsageIndex
	case KindUniform:
		u |= gputypes.BufferUsageUniform
	case KindRaw:
		u |= gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	}
	return u
}

// Resource is a GPU resource whose usage state is tracked on the CPU.
type Resource interface {
	// State returns the state recorded by the last transition.
	State() State
	setState(State)
	recordBarrier(enc hal.CommandEncoder, from, to State)
}

// Buffer is a GPU-resident buffer.
type Buffer struct {
	raw   hal.Buffer
	kind  Kind
	size  uint64
	alloc uint64
	state State
	label string
}

// Raw returns the underlying hal buffer.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Kind returns the buffer kind.
func (b *Buffer) Kind() Kind { return b.kind }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Allocated returns the size of the GPU allocation, size rounded up to
// the kind's granularity.
func (b *Buffer) Allocated() uint64 { return b.alloc }

// Label returns the debug name.
func (b *Buffer) Label() string { return b.label }

// State returns the tracked state.
func (b *Buffer) State() State { return b.state }

func (b *Buffer) setState(s State) { b.state = s }

func (b *Buffer) recordBarrier(enc hal.CommandEncoder, from, to State) {
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: b.raw,
		Usage: hal.BufferUsageTransition{
			OldUsage: from.BufferUsage(),
			NewUsage: to.BufferUsage(),
		},
	}})
}

// Texture is a 2D GPU texture.
type Texture struct {
	raw    hal.Texture
	width  uint32
	height uint32
	format gputypes.TextureFormat
	state  State
	label  string
}

// WrapTexture tracks an externally owned texture, such as a swapchain
// image, starting in state.
func WrapTexture(raw hal.Texture, width, height uint32, format gputypes.TextureFormat, state State) *Texture {
	return &Texture{raw: raw, width: width, height: height, format: format, state: state}
}

// Raw returns the underlying hal texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// Width returns the width in texels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height in texels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Label returns the debug name.
func (t *Texture) Label() string { return t.label }

// State returns the tracked state.
func (t *Texture) State() State { return t.state }

func (t *Texture) setState(s State) { t.state = s }

func (t *Texture) recordBarrier(enc hal.CommandEncoder, from, to State) {
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.raw,
		Range: hal.TextureRange{
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: 1,
		},
		Usage: hal.TextureUsageTransition{
			OldUsage: from.TextureUsage(),
			NewUsage: to.TextureUsage(),
		},
	}})
}

// RecordTransition records a barrier moving res to state to on enc and
// updates the tracked state. It records nothing and returns false when
// res is already in state to.
func RecordTransition(enc hal.CommandEncoder, res Resource, to State) bool {
	from := res.State()
	if from == to {
		return false
	}
	res.recordBarrier(enc, from, to)
	res.setState(to)
	return true
}
