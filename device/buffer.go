package device

import (
	"fmt"
	"strings"

	"github.com/gogpu/wgpu/hal"
)

// copyAlignment is the size granularity of buffer copies.
const copyAlignment = 4

// allocAlignment is the allocation granularity of buffers of kind k.
// Uniform buffers cover whole constant views.
func (k Kind) allocAlignment() uint64 {
	if k == KindUniform {
		return ConstantAlignment
	}
	return copyAlignment
}

// CreateBuffer creates a GPU-resident buffer of kind holding data. size is
// the buffer size in bytes; data may be shorter, the rest is zeroed. The
// upload has completed when CreateBuffer returns and the buffer rests in
// kind.FinalState().
func (d *Device) CreateBuffer(kind Kind, data []byte, size uint64) (*Buffer, error) {
	if !kind.Valid() {
		d.logger.Error("create buffer with unknown kind", "kind", kind.String())
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if size == 0 || uint64(len(data)) > size {
		return nil, fmt.Errorf("%w: %d bytes of data for a %d byte buffer", ErrInvalidSize, len(data), size)
	}
	if err := d.checkLive(); err != nil {
		return nil, err
	}

	label := strings.ToLower(kind.String()) + "_buffer"
	alloc := alignUp(size, kind.allocAlignment())
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  alloc,
		Usage: kind.usage(),
	})
	if err != nil {
		return nil, fmt.Errorf("device: create %s: %w", label, err)
	}
	buf := &Buffer{raw: raw, kind: kind, size: size, alloc: alloc, state: StateCommon, label: label}

	if err := d.uploadBuffer(buf, data, alloc); err != nil {
		d.raw.DestroyBuffer(raw)
		return nil, err
	}

	d.logger.Debug("buffer created", "kind", kind.String(), "size", size, "state", buf.state.String())
	return buf, nil
}

func (d *Device) uploadBuffer(buf *Buffer, data []byte, alloc uint64) error {
	if err := d.BeginUpload(); err != nil {
		return err
	}
	staging, err := d.stage(buf.label, alloc, func(dst []byte) {
		n := copy(dst, data)
		clear(dst[n:])
	})
	if err != nil {
		d.AbortUpload()
		return err
	}

	enc := d.upload.encoder
	RecordTransition(enc, buf, StateCopyDest)
	enc.CopyBufferToBuffer(staging, buf.raw, []hal.BufferCopy{{Size: alloc}})
	RecordTransition(enc, buf, buf.kind.FinalState())

	return d.EndUpload()
}

// WriteBuffer copies data into buf at offset through the queue, ahead of
// the next submission. The range must not be read by work still in
// flight. offset and len(data) must be multiples of 4.
func (d *Device) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if buf == nil || buf.raw == nil {
		return ErrNilResource
	}
	if err := d.checkLive(); err != nil {
		return err
	}
	n := uint64(len(data))
	if offset%copyAlignment != 0 || n%copyAlignment != 0 || offset > buf.alloc || n > buf.alloc-offset {
		return fmt.Errorf("%w: write of %d bytes at %d into a %d byte buffer", ErrInvalidSize, n, offset, buf.alloc)
	}
	if n == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(buf.raw, offset, data); err != nil {
		return fmt.Errorf("device: write %s: %w", buf.label, err)
	}
	return nil
}
