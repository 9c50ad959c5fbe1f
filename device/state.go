package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// State is the tracked usage state of a resource. Transitions between
// states are recorded as barriers before the resource is used in the new
// state.
type State uint8

const (
	// StateCommon is the state of a freshly created resource.
	StateCommon State = iota
	// StateCopyDest is the destination of a copy.
	StateCopyDest
	// StateVertexAndConstant is readable as vertex or uniform data.
	StateVertexAndConstant
	// StateIndex is readable as index data.
	StateIndex
	// StatePixelShaderResource is sampled by the fragment stage.
	StatePixelShaderResource
	// StateGenericRead is readable by any stage and by copies.
	StateGenericRead
	// StateRenderTarget is writable as a color attachment.
	StateRenderTarget
	// StatePresent is owned by the presentation engine.
	StatePresent
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateCommon:
		return "Common"
	case StateCopyDest:
		return "CopyDest"
	case StateVertexAndConstant:
		return "VertexAndConstant"
	case StateIndex:
		return "Index"
	case StatePixelShaderResource:
		return "PixelShaderResource"
	case StateGenericRead:
		return "GenericRead"
	case StateRenderTarget:
		return "RenderTarget"
	case StatePresent:
		return "Present"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// BufferUsage maps s to the buffer usage hal barriers expect.
func (s State) BufferUsage() gputypes.BufferUsage {
	switch s {
	case StateCopyDest:
		return gputypes.BufferUsageCopyDst
	case StateVertexAndConstant:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageUniform
	case StateIndex:
		return gputypes.BufferUsageIndex
	case StatePixelShaderResource:
		return gputypes.BufferUsageStorage
	case StateGenericRead:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	default:
		return gputypes.BufferUsageNone
	}
}

// TextureUsage maps s to the texture usage hal barriers expect. Present
// and Common both map to no usage.
func (s State) TextureUsage() gputypes.TextureUsage {
	switch s {
	case StateCopyDest:
		return gputypes.TextureUsageCopyDst
	case StatePixelShaderResource:
		return gputypes.TextureUsageTextureBinding
	case StateGenericRead:
		return gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc
	case StateRenderTarget:
		return gputypes.TextureUsageRenderAttachment
	default:
		return gputypes.TextureUsageNone
	}
}
