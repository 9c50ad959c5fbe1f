package haltest

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Device is a noop device that journals resource lifetimes and hands out
// instrumented encoders.
type Device struct {
	noop.Device

	Journal *Journal
	Queue   *Queue

	mu        sync.Mutex
	encoders  []*Encoder
	buffers   int
	views     int
	groups    int
	idleCalls int

	// FailBuffer makes the next CreateBuffer call fail.
	FailBuffer error
}

// NewDevice returns a device and its queue sharing journal.
func NewDevice(journal *Journal) *Device {
	if journal == nil {
		journal = &Journal{}
	}
	q := &Queue{Journal: journal}
	return &Device{Journal: journal, Queue: q}
}

// Encoders returns the encoders created so far.
func (d *Device) Encoders() []*Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Encoder, len(d.encoders))
	copy(out, d.encoders)
	return out
}

// LiveBuffers returns created minus destroyed buffers.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers
}

// LiveViews returns created minus destroyed texture views.
func (d *Device) LiveViews() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.views
}

// IdleCalls returns the number of WaitIdle calls.
func (d *Device) IdleCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleCalls
}

func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := fmt.Sprintf("encoder%d", len(d.encoders))
	if desc != nil && desc.Label != "" {
		label = desc.Label
	}
	enc := &Encoder{Label: label, journal: d.Journal}
	d.encoders = append(d.encoders, enc)
	return enc, nil
}

func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.mu.Lock()
	if err := d.FailBuffer; err != nil {
		d.FailBuffer = nil
		d.mu.Unlock()
		return nil, err
	}
	d.buffers++
	d.mu.Unlock()
	d.Journal.Record(EventCreateBuffer, desc.Label, desc.Size)
	return d.Device.CreateBuffer(desc)
}

func (d *Device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	d.buffers--
	d.mu.Unlock()
	d.Journal.Record(EventDestroyBuffer, "", 0)
}

func (d *Device) CreateTextureView(tex hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	d.mu.Lock()
	d.views++
	d.mu.Unlock()
	label := ""
	if desc != nil {
		label = desc.Label
	}
	d.Journal.Record(EventCreateView, label, 0)
	return d.Device.CreateTextureView(tex, desc)
}

func (d *Device) DestroyTextureView(view hal.TextureView) {
	d.mu.Lock()
	d.views--
	d.mu.Unlock()
	d.Journal.Record(EventDestroyView, "", 0)
}

// LiveGroups returns created minus destroyed bind groups.
func (d *Device) LiveGroups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.groups
}

func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.mu.Lock()
	d.groups++
	d.mu.Unlock()
	label := ""
	if desc != nil {
		label = desc.Label
	}
	d.Journal.Record(EventCreateGroup, label, 0)
	return d.Device.CreateBindGroup(desc)
}

func (d *Device) DestroyBindGroup(group hal.BindGroup) {
	d.mu.Lock()
	d.groups--
	d.mu.Unlock()
	d.Journal.Record(EventDestroyGroup, "", 0)
}

// WaitIdle completes every submission on the paired queue.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	d.idleCalls++
	d.mu.Unlock()
	d.Journal.Record(EventWaitIdle, "", 0)
	if d.Queue != nil {
		d.Queue.drain()
	}
	return nil
}

func copyNoop(src, dst *noop.Buffer, regions []hal.BufferCopy) {
	var nd noop.Device
	for _, r := range regions {
		s, err := nd.MapBuffer(src, r.SrcOffset, r.Size)
		if err != nil {
			continue
		}
		d, err := nd.MapBuffer(dst, r.DstOffset, r.Size)
		if err != nil {
			continue
		}
		copy(unsafe.Slice((*byte)(d.Ptr), r.Size), unsafe.Slice((*byte)(s.Ptr), r.Size))
	}
}
