package framecore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/device"
	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/internal/logging"
	"github.com/gogpu/framecore/shader"
)

// Context owns the GPU device, its queue and presentation surface, and
// paces frames in flight against per-slot fences.
//
// A Context is driven by a single goroutine. BeginFrame, EndFrame,
// Resize, WaitIdle and Close must not be called concurrently.
type Context struct {
	cfg    Config
	state  State
	logger *slog.Logger

	// Creation order; Close releases in reverse.
	sel       *selection
	device    hal.Device
	queue     *fence.Queue
	swap      *swapchain
	slots     []frameSlot
	idle      fence.Fence
	idleValue uint64
	frameHeap *descriptor.Heap
	facade    *device.Device
	shaders   *shader.Cache

	backend  string
	info     gputypes.AdapterInfo
	frame    int
	wantMode gputypes.PresentMode
}

// New initializes a Context: it selects an adapter, opens the device,
// configures the surface with cfg.BackBuffers buffers and builds
// cfg.FramesInFlight frame slots, the idle fence, the device facade and
// the shader cache.
//
// Invalid configuration is reported as is. Every GPU creation failure is
// a *FatalError; no partially created object survives it.
func New(cfg Config, target SurfaceTarget, opts ...Option) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{cfg: cfg, logger: o.logger}
	if c.logger == nil {
		c.logger = Logger()
	}
	c.logger = logging.OrNop(c.logger)

	if err := c.init(target, &o); err != nil {
		c.logger.Error("context initialization failed", "err", err)
		c.release()
		return nil, err
	}
	c.state = StateReady
	c.logger.Info("context initialized",
		"backend", c.backend, "width", cfg.Width, "height", cfg.Height,
		"back_buffers", cfg.BackBuffers, "frames_in_flight", cfg.FramesInFlight,
		"tearing", c.swap.tearing)
	return c, nil
}

func (c *Context) init(target SurfaceTarget, o *options) error {
	sel, err := selectAdapter(c.cfg, o, target, c.logger)
	if err != nil {
		return fatal("select adapter", err)
	}
	c.sel = sel
	c.backend = sel.backend
	c.info = sel.adapter.Info
	c.device = sel.open.Device
	c.queue = fence.WrapQueue(sel.open.Queue)

	fences := o.fences
	if fences == nil {
		fences = fence.NewFactory(c.device, c.queue, c.cfg.timeout())
	}

	caps := sel.adapter.Adapter.SurfaceCapabilities(sel.surface)
	c.swap, err = newSwapchain(c.device, sel.surface, caps, c.cfg.BackBuffers,
		c.cfg.Width, c.cfg.Height, c.cfg.VSync, c.logger)
	if err != nil {
		return fatal("create swapchain", err)
	}
	c.wantMode = c.swap.mode

	c.slots = make([]frameSlot, 0, c.cfg.FramesInFlight)
	for i := 0; i < c.cfg.FramesInFlight; i++ {
		slot, err := newFrameSlot(c.device, fences, i)
		if err != nil {
			return fatal("create frame slot", err)
		}
		c.slots = append(c.slots, slot)
	}

	c.idle, err = fences("idle")
	if err != nil {
		return fatal("create idle fence", err)
	}

	heapOpts := []descriptor.Option{descriptor.WithLogger(c.logger)}
	if s, ok := c.device.(descriptor.Strider); ok {
		heapOpts = append(heapOpts, descriptor.WithStrider(s))
	}
	c.frameHeap, err = descriptor.New(descriptor.KindResource, c.cfg.DescriptorCapacity, heapOpts...)
	if err != nil {
		return fatal("create frame descriptor heap", err)
	}

	c.facade, err = device.New(c.device, c.queue,
		device.WithLogger(c.logger),
		device.WithFenceFactory(fences),
		device.WithDescriptorCapacity(c.cfg.DescriptorCapacity),
		device.WithPitchAlignment(uint32(sel.adapter.Capabilities.AlignmentsMask.BufferCopyPitch)),
		device.WithWaitTimeout(c.cfg.timeout()),
	)
	if err != nil {
		return fatal("create device facade", err)
	}

	shaderOpts, err := c.cfg.shaderOptions(sel.backend)
	if err != nil {
		return fatal("configure shader cache", err)
	}
	shaderOpts = append(shaderOpts, shader.WithLogger(c.logger))
	if o.shaderFS != nil {
		shaderOpts = append(shaderOpts, shader.WithFS(o.shaderFS))
	}
	shaderOpts = append(shaderOpts, o.shaders...)
	c.shaders = shader.New(c.cfg.DataRoot, shaderOpts...)
	if err := c.shaders.Init(); err != nil {
		return fatal("init shader cache", err)
	}
	return nil
}

// BeginFrame opens the current frame slot for recording. It waits for the
// surface latency object when there is one, then for the slot's fence,
// resets the slot's command buffers and the frame descriptor heap, and
// transitions the acquired back-buffer to render target.
func (c *Context) BeginFrame() error {
	switch c.state {
	case StateReady:
	case StateRecording:
		return &StateError{Op: "BeginFrame", State: c.state, Err: ErrAlreadyRecording}
	case StateReleased:
		return &StateError{Op: "BeginFrame", State: c.state, Err: ErrReleased}
	default:
		return &StateError{Op: "BeginFrame", State: c.state, Err: ErrNotRecording}
	}

	if c.wantMode != c.swap.mode {
		if err := c.applyPresentMode(); err != nil {
			return err
		}
	}

	if w, ok := c.swap.surface.(FrameLatencyWaiter); ok {
		if err := w.WaitForFrameLatency(); err != nil {
			return fatal("wait frame latency", err)
		}
	}

	slot := &c.slots[c.frame]
	if err := slot.wait(); err != nil {
		return fatal(fmt.Sprintf("wait frame slot %d", slot.index), err)
	}
	slot.releaseGroups(c.facade)
	if err := slot.begin(); err != nil {
		return fatal("begin encoding", err)
	}
	c.frameHeap.Reset()

	bb, err := c.swap.acquire()
	if err != nil {
		slot.encoder.DiscardEncoding()
		return fatal("acquire back-buffer", err)
	}
	device.RecordTransition(slot.encoder, bb.texture, device.StateRenderTarget)

	c.state = StateRecording
	return nil
}

// EndFrame transitions the back-buffer to present, submits the frame,
// presents it and signals the slot's fence with its next value. It then
// advances the frame slot and the back-buffer index.
//
// vsync selects the present mode of later frames: Immediate when vsync is
// off and the surface supports tearing, Fifo otherwise. A change is
// applied by the next BeginFrame after draining the queue.
//
// A present on an occluded surface returns an error matching
// ErrPresentOccluded unless Config.RecoverOccluded is set, in which case
// it is logged and the frame counts as presented. Every other present
// failure is fatal.
func (c *Context) EndFrame(vsync bool) error {
	switch c.state {
	case StateRecording:
	case StateReleased:
		return &StateError{Op: "EndFrame", State: c.state, Err: ErrReleased}
	default:
		return &StateError{Op: "EndFrame", State: c.state, Err: ErrNotRecording}
	}
	c.state = StateReady

	slot := &c.slots[c.frame]
	bb := c.swap.current()
	device.RecordTransition(slot.encoder, bb.texture, device.StatePresent)

	cmd, err := slot.encoder.EndEncoding()
	if err != nil {
		c.swap.discard()
		return fatal("end encoding", err)
	}
	slot.cmds = append(slot.cmds[:0], cmd)
	if _, err := c.queue.Submit(slot.cmds); err != nil {
		c.swap.discard()
		return fatal("submit", err)
	}

	presentErr := c.swap.present(c.queue)

	slot.value++
	if err := slot.fence.Signal(slot.value); err != nil {
		return fatal(fmt.Sprintf("signal frame slot %d", slot.index), err)
	}
	c.frame = (c.frame + 1) % len(c.slots)
	c.swap.advance()
	c.wantMode = c.swap.presentModeFor(vsync)

	if presentErr != nil {
		if errors.Is(presentErr, hal.ErrZeroArea) {
			if c.cfg.RecoverOccluded {
				c.logger.Warn("surface occluded, frame not presented", "slot", slot.index)
				return nil
			}
			return fatal("present", fmt.Errorf("%w: %w", ErrPresentOccluded, presentErr))
		}
		return fatal("present", presentErr)
	}
	return nil
}

// AbortFrame drops the frame being recorded without submitting it. The
// acquired surface texture goes back to the surface and the frame slot
// and back-buffer index stay where they are.
func (c *Context) AbortFrame() error {
	switch c.state {
	case StateRecording:
	case StateReleased:
		return &StateError{Op: "AbortFrame", State: c.state, Err: ErrReleased}
	default:
		return &StateError{Op: "AbortFrame", State: c.state, Err: ErrNotRecording}
	}
	c.slots[c.frame].encoder.DiscardEncoding()
	c.swap.discard()
	c.state = StateReady
	c.logger.Debug("frame aborted", "slot", c.frame)
	return nil
}

// Resize rebuilds the back-buffers at the new size after draining the
// queue. Unchanged or zero dimensions are ignored. Render target handles
// keep their indices.
func (c *Context) Resize(width, height uint32) error {
	switch c.state {
	case StateReady:
	case StateReleased:
		return &StateError{Op: "Resize", State: c.state, Err: ErrReleased}
	default:
		return &StateError{Op: "Resize", State: c.state, Err: ErrAlreadyRecording}
	}
	if width == 0 || height == 0 || (width == c.swap.width && height == c.swap.height) {
		return nil
	}

	c.state = StateResizing
	defer func() { c.state = StateReady }()

	if err := c.waitIdle(); err != nil {
		return fatal("resize", err)
	}
	if err := c.swap.reconfigure(width, height, c.swap.mode); err != nil {
		return fatal("resize", err)
	}
	c.cfg.Width, c.cfg.Height = width, height
	c.logger.Debug("resized", "width", width, "height", height)
	return nil
}

// WaitIdle blocks until the GPU finished every submission.
func (c *Context) WaitIdle() error {
	if c.state == StateReleased {
		return &StateError{Op: "WaitIdle", State: c.state, Err: ErrReleased}
	}
	if err := c.waitIdle(); err != nil {
		return fatal("wait idle", err)
	}
	return nil
}

func (c *Context) waitIdle() error {
	c.idleValue++
	if err := c.idle.Signal(c.idleValue); err != nil {
		return err
	}
	return c.idle.Wait(c.idleValue)
}

func (c *Context) applyPresentMode() error {
	if err := c.waitIdle(); err != nil {
		return fatal("change present mode", err)
	}
	if err := c.swap.reconfigure(c.swap.width, c.swap.height, c.wantMode); err != nil {
		return fatal("change present mode", err)
	}
	return nil
}

// Close drains the queue and releases everything the Context owns in
// reverse creation order. It is idempotent. The error reports a failed
// drain; releasing continues regardless.
func (c *Context) Close() error {
	if c.state == StateReleased {
		return nil
	}
	var err error
	if c.state == StateRecording {
		c.slots[c.frame].encoder.DiscardEncoding()
		c.swap.discard()
	}
	if c.idle != nil {
		if werr := c.waitIdle(); werr != nil {
			err = fatal("close", werr)
		}
	}
	c.release()
	c.state = StateReleased
	c.logger.Info("context released")
	return err
}

func (c *Context) release() {
	if c.shaders != nil {
		_ = c.shaders.Close()
		c.shaders = nil
	}
	if c.facade != nil {
		for i := range c.slots {
			c.slots[i].releaseGroups(c.facade)
		}
		c.facade.Release()
		c.facade = nil
	}
	if c.frameHeap != nil {
		c.frameHeap.Reset()
		c.frameHeap = nil
	}
	if c.idle != nil {
		c.idle.Destroy()
		c.idle = nil
	}
	if c.swap != nil {
		c.swap.destroy()
		c.swap = nil
	}
	for i := len(c.slots) - 1; i >= 0; i-- {
		c.slots[i].destroy()
	}
	c.slots = nil
	if c.sel != nil {
		c.sel.release()
		c.sel = nil
	}
	c.device = nil
	c.queue = nil
}

// Device returns the resource facade.
func (c *Context) Device() *device.Device { return c.facade }

// Shaders returns the shader cache.
func (c *Context) Shaders() *shader.Cache { return c.shaders }

// CommandEncoder returns the encoder of the current frame slot. It is
// recording only between BeginFrame and EndFrame.
func (c *Context) CommandEncoder() hal.CommandEncoder {
	if len(c.slots) == 0 {
		return nil
	}
	return c.slots[c.frame].encoder
}

// FrameDescriptors returns the heap for descriptors that live one frame.
// BeginFrame resets it.
func (c *Context) FrameDescriptors() *descriptor.Heap { return c.frameHeap }

// FrameConstantView creates a constant view of buf's range at offset in
// the frame heap. The handle is valid until the next BeginFrame.
func (c *Context) FrameConstantView(buf *device.Buffer, offset, size uint64) (descriptor.Handle, error) {
	if err := c.recording("FrameConstantView"); err != nil {
		return descriptor.Handle{}, err
	}
	return c.facade.CreateConstantViewIn(c.frameHeap, buf, offset, size)
}

// FrameBindGroup creates a bind group of layout from views in the frame
// heap or the persistent heap. It is destroyed once the GPU finished the
// frame it was created in.
func (c *Context) FrameBindGroup(layout *device.BindingLayout, cbv, srv descriptor.Handle) (hal.BindGroup, error) {
	if err := c.recording("FrameBindGroup"); err != nil {
		return nil, err
	}
	group, err := c.facade.CreateTransientBindGroup(layout, c.frameHeap, cbv, srv)
	if err != nil {
		return nil, err
	}
	slot := &c.slots[c.frame]
	slot.groups = append(slot.groups, group)
	return group, nil
}

func (c *Context) recording(op string) error {
	switch c.state {
	case StateRecording:
		return nil
	case StateReleased:
		return &StateError{Op: op, State: c.state, Err: ErrReleased}
	default:
		return &StateError{Op: op, State: c.state, Err: ErrNotRecording}
	}
}

// RTVHandle returns the render target slot of back-buffer i.
func (c *Context) RTVHandle(i int) descriptor.Handle {
	return c.swap.buffers[i].rtv
}

// BackBufferView returns the view of the acquired back-buffer, or nil
// outside a frame.
func (c *Context) BackBufferView() hal.TextureView {
	if c.state != StateRecording {
		return nil
	}
	return c.swap.current().view
}

// BackBufferIndex returns the ring index of the current back-buffer.
func (c *Context) BackBufferIndex() int { return c.swap.index }

// BackBufferCount returns the ring length.
func (c *Context) BackBufferCount() int { return len(c.swap.buffers) }

// FrameIndex returns the current frame slot.
func (c *Context) FrameIndex() int { return c.frame }

// FenceValue returns the last value signaled for frame slot slot.
func (c *Context) FenceValue(slot int) uint64 { return c.slots[slot].value }

// IdleFenceValue returns the last value signaled by WaitIdle.
func (c *Context) IdleFenceValue() uint64 { return c.idleValue }

func (c *Context) Width() uint32  { return c.cfg.Width }
func (c *Context) Height() uint32 { return c.cfg.Height }

// State returns the lifecycle state.
func (c *Context) State() State { return c.state }

// TearingSupported reports whether the surface can present without vsync.
func (c *Context) TearingSupported() bool { return c.swap != nil && c.swap.tearing }

// PresentMode returns the mode the surface is configured with.
func (c *Context) PresentMode() gputypes.PresentMode { return c.swap.mode }

// SurfaceFormat returns the back-buffer format.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.swap.format }

// Backend returns the name of the selected backend.
func (c *Context) Backend() string { return c.backend }

// Config returns the configuration, with the size of the last Resize.
func (c *Context) Config() Config { return c.cfg }
