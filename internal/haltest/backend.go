package haltest

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// ErrOpen is returned by an Adapter whose Open is configured to fail.
var ErrOpen = errors.New("haltest: adapter open failed")

// Backend is a hal.Backend over instrumented doubles.
type Backend struct {
	Name     gputypes.Backend
	Instance *Instance
}

// NewBackend returns a backend exposing one discrete adapter whose device
// is dev, and whose surfaces are surface.
func NewBackend(dev *Device, surface hal.Surface) *Backend {
	return &Backend{
		Name: gputypes.BackendEmpty,
		Instance: &Instance{
			Surface:  surface,
			Adapters: []hal.ExposedAdapter{ExposedAdapter("Test GPU", gputypes.DeviceTypeDiscreteGPU, dev)},
		},
	}
}

func (b *Backend) Variant() gputypes.Backend { return b.Name }

func (b *Backend) CreateInstance(*hal.InstanceDescriptor) (hal.Instance, error) {
	return b.Instance, nil
}

// Instance returns a fixed surface and adapter list.
type Instance struct {
	noop.Instance
	Surface  hal.Surface
	Adapters []hal.ExposedAdapter

	Destroyed bool
}

func (i *Instance) CreateSurface(_, _ uintptr) (hal.Surface, error) {
	if i.Surface == nil {
		return &noop.Surface{}, nil
	}
	return i.Surface, nil
}

func (i *Instance) EnumerateAdapters(hal.Surface) []hal.ExposedAdapter { return i.Adapters }

func (i *Instance) Destroy() { i.Destroyed = true }

// Adapter opens a fixed device.
type Adapter struct {
	noop.Adapter
	Device *Device

	// RejectLimits fails Open unless called with gputypes.DefaultLimits.
	RejectLimits bool
	// Fail makes every Open call fail.
	Fail  bool
	Opens int

	// NoImmediate hides PresentModeImmediate from surface capabilities.
	NoImmediate bool
}

func (a *Adapter) Open(_ gputypes.Features, limits gputypes.Limits) (hal.OpenDevice, error) {
	a.Opens++
	if a.Fail || (a.RejectLimits && limits != gputypes.DefaultLimits()) {
		return hal.OpenDevice{}, ErrOpen
	}
	if a.Device == nil {
		return a.Adapter.Open(gputypes.Features(0), limits)
	}
	return hal.OpenDevice{Device: a.Device, Queue: a.Device.Queue}, nil
}

func (a *Adapter) SurfaceCapabilities(s hal.Surface) *hal.SurfaceCapabilities {
	caps := a.Adapter.SurfaceCapabilities(s)
	if a.NoImmediate {
		modes := caps.PresentModes[:0]
		for _, m := range caps.PresentModes {
			if m != hal.PresentModeImmediate {
				modes = append(modes, m)
			}
		}
		caps.PresentModes = modes
	}
	return caps
}

// ExposedAdapter builds an adapter entry of the given type.
func ExposedAdapter(name string, typ gputypes.DeviceType, dev *Device) hal.ExposedAdapter {
	limits := gputypes.DefaultLimits()
	return hal.ExposedAdapter{
		Adapter: &Adapter{Device: dev},
		Info: gputypes.AdapterInfo{
			Name:       name,
			DeviceType: typ,
			Backend:    gputypes.BackendEmpty,
		},
		Capabilities: hal.Capabilities{
			Limits: limits,
			AlignmentsMask: hal.Alignments{
				BufferCopyOffset: 4,
				BufferCopyPitch:  256,
			},
		},
	}
}
