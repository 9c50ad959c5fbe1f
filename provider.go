package framecore

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Provider exposes the Context's device to other gogpu libraries. Device
// and Queue return the hal objects; callers type-assert them to
// hal.Device and hal.Queue.
func (c *Context) Provider() gpucontext.DeviceProvider {
	return deviceProvider{c}
}

// AdapterInfo describes the selected adapter.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: c.info.Name,
		Type: adapterType(c.info.DeviceType),
	}
}

type deviceProvider struct{ c *Context }

var _ gpucontext.DeviceProvider = deviceProvider{}

func (p deviceProvider) Device() gpucontext.Device {
	if p.c.device == nil {
		return nil
	}
	return p.c.device
}

func (p deviceProvider) Queue() gpucontext.Queue {
	if p.c.queue == nil {
		return nil
	}
	return p.c.queue
}

func (p deviceProvider) SurfaceFormat() gputypes.TextureFormat {
	if p.c.swap == nil {
		return gputypes.TextureFormatUndefined
	}
	return p.c.swap.format
}

func (p deviceProvider) Adapter() gpucontext.Adapter {
	if p.c.sel == nil {
		return nil
	}
	return p.c.sel.adapter.Adapter
}

func (p deviceProvider) AdapterInfo() gpucontext.AdapterInfo { return p.c.AdapterInfo() }
