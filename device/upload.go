package device

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// uploader is the dedicated recording context for resource uploads.
type uploader struct {
	encoder   hal.CommandEncoder
	fence     fence.Fence
	value     uint64
	recording bool
	staging   []hal.Buffer
	bytes     uint64
}

func (u *uploader) init(d *Device) error {
	enc, err := d.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "upload"})
	if err != nil {
		return fmt.Errorf("device: create upload encoder: %w", err)
	}
	f, err := d.fences("upload")
	if err != nil {
		enc.Destroy()
		return fmt.Errorf("device: create upload fence: %w", err)
	}
	u.encoder = enc
	u.fence = f
	return nil
}

func (u *uploader) release(d *Device) {
	if u.recording {
		u.encoder.DiscardEncoding()
		u.recording = false
	}
	u.destroyStaging(d)
	if u.encoder != nil {
		u.encoder.Destroy()
		u.encoder = nil
	}
	if u.fence != nil {
		u.fence.Destroy()
		u.fence = nil
	}
}

func (u *uploader) destroyStaging(d *Device) {
	for _, b := range u.staging {
		d.raw.DestroyBuffer(b)
	}
	u.staging = u.staging[:0]
	u.bytes = 0
}

// BeginUpload opens the upload encoder. Only one upload records at a time.
func (d *Device) BeginUpload() error {
	if err := d.checkLive(); err != nil {
		return err
	}
	if d.upload.recording {
		return ErrUploadActive
	}
	if err := d.upload.encoder.BeginEncoding("upload"); err != nil {
		return fmt.Errorf("device: begin upload: %w", err)
	}
	d.upload.recording = true
	return nil
}

// EndUpload closes the upload encoder, submits it and blocks until the GPU
// has executed it. Staging buffers of the upload are destroyed before
// returning.
func (d *Device) EndUpload() error {
	if err := d.checkLive(); err != nil {
		return err
	}
	u := &d.upload
	if !u.recording {
		return ErrNoUpload
	}
	u.recording = false

	cmd, err := u.encoder.EndEncoding()
	if err != nil {
		u.destroyStaging(d)
		return fmt.Errorf("device: end upload: %w", err)
	}
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		u.destroyStaging(d)
		return fmt.Errorf("device: submit upload: %w", err)
	}

	// Past this point staging memory may be in use by the GPU; on failure
	// it is left for Release.

	u.value++
	if err := u.fence.Signal(u.value); err != nil {
		return fmt.Errorf("device: signal upload: %w", err)
	}
	if err := u.fence.Wait(u.value); err != nil {
		return fmt.Errorf("device: wait upload: %w", err)
	}
	u.encoder.ResetAll([]hal.CommandBuffer{cmd})

	d.logger.Debug("upload complete",
		"fence", u.value, "staging", len(u.staging), "bytes", u.bytes)
	u.destroyStaging(d)
	return nil
}

// AbortUpload discards the recording upload and its staging buffers.
func (d *Device) AbortUpload() {
	u := &d.upload
	if !u.recording {
		return
	}
	u.encoder.DiscardEncoding()
	u.recording = false
	u.destroyStaging(d)
}

// UploadEncoder returns the upload encoder while an upload is recording,
// for callers that record their own copies between BeginUpload and
// EndUpload.
func (d *Device) UploadEncoder() (hal.CommandEncoder, error) {
	if !d.upload.recording {
		return nil, ErrNoUpload
	}
	return d.upload.encoder, nil
}

// UploadFenceValue returns the value signaled by the last EndUpload.
func (d *Device) UploadFenceValue() uint64 { return d.upload.value }

// Transition records a transition of res to state on the upload encoder.
// It reports whether a barrier was recorded.
func (d *Device) Transition(res Resource, to State) (bool, error) {
	if res == nil {
		return false, ErrNilResource
	}
	enc, err := d.UploadEncoder()
	if err != nil {
		return false, err
	}
	return RecordTransition(enc, res, to), nil
}

// stage creates a staging buffer of size bytes, lets fill write into its
// mapped memory and hands ownership to the current upload.
func (d *Device) stage(label string, size uint64, fill func(dst []byte)) (hal.Buffer, error) {
	if size > d.maxStaging {
		return nil, fmt.Errorf("%w: staging %d bytes exceeds %d", ErrInvalidSize, size, d.maxStaging)
	}
	buf, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("device: create staging buffer: %w", err)
	}
	mapping, err := d.raw.MapBuffer(buf, 0, size)
	if err != nil {
		d.raw.DestroyBuffer(buf)
		return nil, fmt.Errorf("device: map staging buffer: %w", err)
	}
	fill(unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := d.raw.UnmapBuffer(buf); err != nil {
		d.raw.DestroyBuffer(buf)
		return nil, fmt.Errorf("device: unmap staging buffer: %w", err)
	}
	d.upload.staging = append(d.upload.staging, buf)
	d.upload.bytes += size
	return buf, nil
}
