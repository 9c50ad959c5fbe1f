package framecore

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/device"
)

// FrameLatencyWaiter is implemented by surfaces that pace the CPU to the
// display, like a DXGI frame latency waitable object. BeginFrame blocks
// on it before touching the frame slot.
type FrameLatencyWaiter interface {
	WaitForFrameLatency() error
}

// backBuffer is one entry of the presentation ring. Its render target slot
// is fixed for the life of the swapchain. The view and texture are
// replaced every time the index is acquired again.
type backBuffer struct {
	rtv      descriptor.Handle
	acquired hal.SurfaceTexture
	texture  *device.Texture
	view     hal.TextureView
}

// swapchain layers a fixed ring of back-buffer indices over a hal surface,
// which hands out one texture per acquire.
type swapchain struct {
	surface hal.Surface
	device  hal.Device
	rtvs    *descriptor.Heap
	format  gputypes.TextureFormat
	width   uint32
	height  uint32
	mode    gputypes.PresentMode
	tearing bool
	buffers []backBuffer
	index   int
	logger  *slog.Logger
}

func newSwapchain(dev hal.Device, surface hal.Surface, caps *hal.SurfaceCapabilities,
	count int, width, height uint32, vsync bool, logger *slog.Logger) (*swapchain, error) {
	s := &swapchain{
		surface: surface,
		device:  dev,
		format:  gputypes.TextureFormatBGRA8Unorm,
		width:   width,
		height:  height,
		buffers: make([]backBuffer, count),
		logger:  logger,
	}
	if caps != nil {
		if len(caps.Formats) > 0 && !slices.Contains(caps.Formats, s.format) {
			s.format = caps.Formats[0]
		}
		s.tearing = slices.Contains(caps.PresentModes, hal.PresentModeImmediate)
	}
	s.mode = s.presentModeFor(vsync)

	rtvs, err := descriptor.New(descriptor.KindRenderTarget, uint32(count), descriptor.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if _, err := rtvs.Allocate(uint32(count)); err != nil {
		return nil, err
	}
	s.rtvs = rtvs
	for i := range s.buffers {
		s.buffers[i].rtv = rtvs.HandleAt(uint32(i))
	}

	if err := s.configure(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *swapchain) presentModeFor(vsync bool) gputypes.PresentMode {
	if !vsync && s.tearing {
		return hal.PresentModeImmediate
	}
	return hal.PresentModeFifo
}

func (s *swapchain) configure() error {
	err := s.surface.Configure(s.device, &hal.SurfaceConfiguration{
		Width:       s.width,
		Height:      s.height,
		Format:      s.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: s.mode,
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return fmt.Errorf("configure surface %dx%d: %w", s.width, s.height, err)
	}
	s.logger.Debug("surface configured",
		"width", s.width, "height", s.height, "buffers", len(s.buffers),
		"format", s.format.String(), "present_mode", s.mode.String())
	return nil
}

// current returns the back-buffer at the ring index.
func (s *swapchain) current() *backBuffer { return &s.buffers[s.index] }

// acquire takes the next surface texture into the current ring entry.
// An outdated surface is reconfigured once.
func (s *swapchain) acquire() (*backBuffer, error) {
	acq, err := s.surface.AcquireTexture(nil)
	if errors.Is(err, hal.ErrSurfaceOutdated) {
		s.logger.Debug("surface outdated, reconfiguring")
		if err = s.configure(); err == nil {
			acq, err = s.surface.AcquireTexture(nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	if acq.Suboptimal {
		s.logger.Debug("surface texture suboptimal", "index", s.index)
	}

	bb := s.current()
	s.releaseView(bb)
	label := fmt.Sprintf("backbuffer%d", s.index)
	view, err := s.device.CreateTextureView(acq.Texture, &hal.TextureViewDescriptor{
		Label:           label,
		Format:          s.format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		s.surface.DiscardTexture(acq.Texture)
		return nil, fmt.Errorf("create back-buffer view: %w", err)
	}
	bb.acquired = acq.Texture
	bb.view = view
	bb.texture = device.WrapTexture(acq.Texture, s.width, s.height, s.format, device.StatePresent)
	if err := s.rtvs.Write(bb.rtv, descriptor.Descriptor{
		Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
		Format:   s.format,
		Label:    label,
	}); err != nil {
		return nil, err
	}
	return bb, nil
}

// present hands the current texture back to the surface.
func (s *swapchain) present(q hal.Queue) error {
	bb := s.current()
	if bb.acquired == nil {
		return fmt.Errorf("present: back-buffer %d not acquired", s.index)
	}
	tex := bb.acquired
	bb.acquired = nil
	return q.Present(s.surface, tex, nil)
}

func (s *swapchain) advance() {
	s.index = (s.index + 1) % len(s.buffers)
}

// discard returns an acquired but unpresented texture.
func (s *swapchain) discard() {
	bb := s.current()
	if bb.acquired != nil {
		s.surface.DiscardTexture(bb.acquired)
		bb.acquired = nil
	}
}

func (s *swapchain) releaseView(bb *backBuffer) {
	if bb.view != nil {
		s.device.DestroyTextureView(bb.view)
		bb.view = nil
	}
	bb.texture = nil
}

// releaseViews drops every back-buffer view. The queue must be idle.
func (s *swapchain) releaseViews() {
	s.discard()
	for i := range s.buffers {
		s.releaseView(&s.buffers[i])
		_ = s.rtvs.Write(s.buffers[i].rtv, descriptor.Descriptor{})
	}
}

// reconfigure applies a new size or present mode. RTV handles keep their
// indices. The queue must be idle.
func (s *swapchain) reconfigure(width, height uint32, mode gputypes.PresentMode) error {
	s.releaseViews()
	s.width, s.height, s.mode = width, height, mode
	return s.configure()
}

func (s *swapchain) destroy() {
	s.releaseViews()
	s.surface.Unconfigure(s.device)
	s.rtvs.Reset()
}
