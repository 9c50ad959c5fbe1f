package device

import (
	"fmt"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CreateConstantView allocates one persistent descriptor slot describing
// buf as a constant buffer of size bytes, rounded up to
// ConstantAlignment. The rounded size must fit in the buffer allocation.
func (d *Device) CreateConstantView(buf *Buffer, size uint64) (descriptor.Handle, error) {
	return d.CreateConstantViewIn(d.heap, buf, 0, size)
}

// CreateConstantViewIn is CreateConstantView for the range of buf starting
// at offset, written into heap. offset must be a multiple of
// ConstantAlignment. Views in a heap other than Descriptors live until that
// heap is reset.
func (d *Device) CreateConstantViewIn(heap *descriptor.Heap, buf *Buffer, offset, size uint64) (descriptor.Handle, error) {
	if heap == nil || buf == nil || buf.raw == nil {
		return descriptor.Handle{}, ErrNilResource
	}
	if size == 0 {
		return descriptor.Handle{}, fmt.Errorf("%w: constant view of 0 bytes", ErrInvalidSize)
	}
	if offset%ConstantAlignment != 0 {
		return descriptor.Handle{}, fmt.Errorf("%w: constant view offset %d not aligned to %d",
			ErrInvalidSize, offset, ConstantAlignment)
	}
	if err := d.checkLive(); err != nil {
		return descriptor.Handle{}, err
	}
	aligned := alignUp(size, ConstantAlignment)
	if offset > buf.alloc || aligned > buf.alloc-offset {
		return descriptor.Handle{}, fmt.Errorf("%w: constant view of %d bytes at %d over a %d byte buffer",
			ErrInvalidSize, aligned, offset, buf.alloc)
	}

	h, err := heap.Allocate(1)
	if err != nil {
		return descriptor.Handle{}, err
	}
	err = heap.Write(h, descriptor.Descriptor{
		Resource: gputypes.BufferBinding{
			Buffer: buf.raw.NativeHandle(),
			Offset: offset,
			Size:   aligned,
		},
		Size:  aligned,
		Label: buf.label + "_cbv",
	})
	if err != nil {
		return descriptor.Handle{}, err
	}
	return h, nil
}

// CreateShaderResourceView2D creates a 2D view of tex in format and
// allocates one persistent descriptor slot describing it. The view lives
// until Release.
func (d *Device) CreateShaderResourceView2D(tex *Texture, format gputypes.TextureFormat) (descriptor.Handle, error) {
	if tex == nil || tex.raw == nil {
		return descriptor.Handle{}, ErrNilResource
	}
	if err := d.checkLive(); err != nil {
		return descriptor.Handle{}, err
	}

	h, err := d.heap.Allocate(1)
	if err != nil {
		return descriptor.Handle{}, err
	}
	view, err := d.raw.CreateTextureView(tex.raw, &hal.TextureViewDescriptor{
		Label:           tex.label + "_srv",
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return descriptor.Handle{}, fmt.Errorf("device: create shader resource view: %w", err)
	}
	d.views = append(d.views, view)

	err = d.heap.Write(h, descriptor.Descriptor{
		Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
		Format:   format,
		Label:    tex.label + "_srv",
	})
	if err != nil {
		return descriptor.Handle{}, err
	}
	return h, nil
}
