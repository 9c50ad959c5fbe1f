package device

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/internal/logging"
	"github.com/gogpu/wgpu/hal"
)

const (
	// ConstantAlignment is the size granularity of constant views.
	ConstantAlignment = 256

	// DefaultPitchAlignment is the row pitch alignment of texture uploads
	// when the adapter reports none.
	DefaultPitchAlignment = 256

	// defaultMaxStaging caps a single staging buffer when the device does
	// not report its own limit.
	defaultMaxStaging = 64 << 20
)

// Device creates GPU resources and uploads their initial contents.
//
// Device is not safe for concurrent use. It shares the frame thread with
// the Context that owns it.
type Device struct {
	// raw is the underlying hal device (not owned).
	raw hal.Device

	// queue is the submission queue shared with the frame loop.
	queue *fence.Queue

	// heap holds the persistent constant and shader resource views.
	heap *descriptor.Heap

	// upload is the single synchronous upload context.
	upload uploader

	// pitch is the texture upload row pitch alignment.
	pitch uint32

	// maxStaging caps a single staging buffer.
	maxStaging uint64

	// views, layouts and groups are destroyed by Release.
	views   []hal.TextureView
	layouts []*BindingLayout
	groups  []hal.BindGroup

	logger   *slog.Logger
	fences   fence.Factory
	capacity uint32
	timeout  time.Duration
	released bool
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = logging.OrNop(l) }
}

// WithFenceFactory replaces the factory used for the upload fence.
func WithFenceFactory(f fence.Factory) Option {
	return func(d *Device) { d.fences = f }
}

// WithDescriptorCapacity sets the persistent heap capacity.
func WithDescriptorCapacity(n uint32) Option {
	return func(d *Device) { d.capacity = n }
}

// WithPitchAlignment sets the texture upload row pitch alignment. Zero
// keeps DefaultPitchAlignment.
func WithPitchAlignment(n uint32) Option {
	return func(d *Device) {
		if n > 0 {
			d.pitch = n
		}
	}
}

// WithWaitTimeout bounds the upload fence wait. Zero waits forever.
func WithWaitTimeout(t time.Duration) Option {
	return func(d *Device) { d.timeout = t }
}

// New creates a device facade over raw and queue. queue is wrapped with
// fence.WrapQueue unless it already is a *fence.Queue.
func New(raw hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if raw == nil || queue == nil {
		return nil, fmt.Errorf("device: nil hal device or queue")
	}
	d := &Device{
		raw:        raw,
		queue:      fence.WrapQueue(queue),
		pitch:      DefaultPitchAlignment,
		maxStaging: defaultMaxStaging,
		logger:     logging.Nop(),
		capacity:   descriptor.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(d)
	}
	if s, ok := raw.(hal.MaxStagingBufferSizer); ok {
		if n := s.MaxStagingBufferSize(); n > 0 {
			d.maxStaging = n
		}
	}
	if d.fences == nil {
		d.fences = fence.NewFactory(raw, d.queue, d.timeout)
	}

	heapOpts := []descriptor.Option{descriptor.WithLogger(d.logger)}
	if s, ok := raw.(descriptor.Strider); ok {
		heapOpts = append(heapOpts, descriptor.WithStrider(s))
	}
	heap, err := descriptor.New(descriptor.KindResource, d.capacity, heapOpts...)
	if err != nil {
		return nil, fmt.Errorf("device: create descriptor heap: %w", err)
	}
	d.heap = heap

	if err := d.upload.init(d); err != nil {
		return nil, err
	}

	d.logger.Debug("device facade created",
		"descriptors", d.heap.Capacity(), "pitch", d.pitch, "max_staging", d.maxStaging)
	return d, nil
}

// Raw returns the underlying hal device.
func (d *Device) Raw() hal.Device { return d.raw }

// Queue returns the fence-tracking submission queue.
func (d *Device) Queue() *fence.Queue { return d.queue }

// Descriptors returns the persistent descriptor heap.
func (d *Device) Descriptors() *descriptor.Heap { return d.heap }

// PitchAlignment returns the texture upload row pitch alignment.
func (d *Device) PitchAlignment() uint32 { return d.pitch }

// DestroyBuffer releases b. b must not be referenced by pending GPU work.
func (d *Device) DestroyBuffer(b *Buffer) {
	if b == nil || b.raw == nil {
		return
	}
	d.raw.DestroyBuffer(b.raw)
	b.raw = nil
}

// DestroyTexture releases t. t must not be referenced by pending GPU work.
func (d *Device) DestroyTexture(t *Texture) {
	if t == nil || t.raw == nil {
		return
	}
	d.raw.DestroyTexture(t.raw)
	t.raw = nil
}

// Release destroys everything the device created internally: bind groups,
// binding layouts, views, the upload encoder and fence. The caller must
// make sure the GPU is idle. Release is idempotent.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true

	for i := len(d.groups) - 1; i >= 0; i-- {
		d.raw.DestroyBindGroup(d.groups[i])
	}
	d.groups = nil
	for i := len(d.layouts) - 1; i >= 0; i-- {
		d.layouts[i].destroy(d.raw)
	}
	d.layouts = nil
	for i := len(d.views) - 1; i >= 0; i-- {
		d.raw.DestroyTextureView(d.views[i])
	}
	d.views = nil
	d.upload.release(d)
	d.heap.Reset()

	d.logger.Debug("device facade released")
}

func (d *Device) checkLive() error {
	if d.released {
		return ErrReleased
	}
	return nil
}

func alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}
