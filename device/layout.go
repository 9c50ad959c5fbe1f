package device

import (
	"fmt"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Bindings of the basic layout.
const (
	BindingConstants = 0
	BindingTexture   = 1
	BindingSampler   = 2
)

// BindingLayout is the fixed layout used by simple materials: one constant
// buffer visible to every stage, one sampled 2D texture visible to the
// fragment stage and, optionally, a built-in linear/repeat sampler.
type BindingLayout struct {
	group    hal.BindGroupLayout
	pipeline hal.PipelineLayout
	sampler  hal.Sampler
}

// Group returns the bind group layout.
func (l *BindingLayout) Group() hal.BindGroupLayout { return l.group }

// Pipeline returns the pipeline layout.
func (l *BindingLayout) Pipeline() hal.PipelineLayout { return l.pipeline }

// Sampler returns the embedded sampler, or nil.
func (l *BindingLayout) Sampler() hal.Sampler { return l.sampler }

// HasSampler reports whether the layout embeds a sampler.
func (l *BindingLayout) HasSampler() bool { return l.sampler != nil }

func (l *BindingLayout) destroy(raw hal.Device) {
	if l.pipeline != nil {
		raw.DestroyPipelineLayout(l.pipeline)
	}
	if l.group != nil {
		raw.DestroyBindGroupLayout(l.group)
	}
	if l.sampler != nil {
		raw.DestroySampler(l.sampler)
	}
}

// BasicLayoutEntries returns the bind group layout entries of the basic
// layout.
func BasicLayoutEntries(useEmbeddedSampler bool) []gputypes.BindGroupLayoutEntry {
	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    BindingConstants,
			Visibility: gputypes.ShaderStagesAll,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    BindingTexture,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		},
	}
	if useEmbeddedSampler {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    BindingSampler,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	return entries
}

// CreateBasicBindingLayout builds the basic binding layout and its
// pipeline layout. The layout lives until Release.
func (d *Device) CreateBasicBindingLayout(useEmbeddedSampler bool) (*BindingLayout, error) {
	if err := d.checkLive(); err != nil {
		return nil, err
	}
	l := &BindingLayout{}

	if useEmbeddedSampler {
		s, err := d.raw.CreateSampler(&hal.SamplerDescriptor{
			Label:        "basic_linear_wrap",
			AddressModeU: gputypes.AddressModeRepeat,
			AddressModeV: gputypes.AddressModeRepeat,
			AddressModeW: gputypes.AddressModeRepeat,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeLinear,
			LodMaxClamp:  32,
			Anisotropy:   1,
		})
		if err != nil {
			return nil, fmt.Errorf("device: create sampler: %w", err)
		}
		l.sampler = s
	}

	group, err := d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "basic_layout",
		Entries: BasicLayoutEntries(useEmbeddedSampler),
	})
	if err != nil {
		l.destroy(d.raw)
		return nil, fmt.Errorf("device: create bind group layout: %w", err)
	}
	l.group = group

	pipeline, err := d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "basic_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{group},
	})
	if err != nil {
		l.destroy(d.raw)
		return nil, fmt.Errorf("device: create pipeline layout: %w", err)
	}
	l.pipeline = pipeline

	d.layouts = append(d.layouts, l)
	return l, nil
}

// CreateBindGroup materializes a constant view and a shader resource view
// from the persistent heap into a bind group of layout. The group lives
// until Release.
func (d *Device) CreateBindGroup(layout *BindingLayout, cbv, srv descriptor.Handle) (hal.BindGroup, error) {
	if layout == nil {
		return nil, ErrNilResource
	}
	if err := d.checkLive(); err != nil {
		return nil, err
	}
	group, err := d.bindGroup(layout, cbv, srv, d.heap)
	if err != nil {
		return nil, err
	}
	d.groups = append(d.groups, group)
	return group, nil
}

// CreateTransientBindGroup is CreateBindGroup for views that may live in
// frame, a heap reset every frame. The group is not tracked: the caller
// destroys it with DestroyBindGroup once the GPU is done with it.
func (d *Device) CreateTransientBindGroup(layout *BindingLayout, frame *descriptor.Heap, cbv, srv descriptor.Handle) (hal.BindGroup, error) {
	if layout == nil || frame == nil {
		return nil, ErrNilResource
	}
	if err := d.checkLive(); err != nil {
		return nil, err
	}
	return d.bindGroup(layout, cbv, srv, frame, d.heap)
}

// DestroyBindGroup destroys a group from CreateTransientBindGroup.
func (d *Device) DestroyBindGroup(group hal.BindGroup) {
	if group != nil && !d.released {
		d.raw.DestroyBindGroup(group)
	}
}

// lookup resolves h in the first heap that owns it.
func lookup(h descriptor.Handle, heaps ...*descriptor.Heap) (descriptor.Descriptor, error) {
	var err error
	for _, heap := range heaps {
		var desc descriptor.Descriptor
		if desc, err = heap.Lookup(h); err == nil {
			return desc, nil
		}
	}
	return descriptor.Descriptor{}, err
}

func (d *Device) bindGroup(layout *BindingLayout, cbv, srv descriptor.Handle, heaps ...*descriptor.Heap) (hal.BindGroup, error) {
	cb, err := lookup(cbv, heaps...)
	if err != nil {
		return nil, fmt.Errorf("device: constant view: %w", err)
	}
	sr, err := lookup(srv, heaps...)
	if err != nil {
		return nil, fmt.Errorf("device: shader resource view: %w", err)
	}
	if cb.Resource == nil || sr.Resource == nil {
		return nil, fmt.Errorf("device: bind group from empty descriptor slot: %w", descriptor.ErrInvalidHandle)
	}

	entries := []gputypes.BindGroupEntry{
		{Binding: BindingConstants, Resource: cb.Resource},
		{Binding: BindingTexture, Resource: sr.Resource},
	}
	if layout.sampler != nil {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  BindingSampler,
			Resource: gputypes.SamplerBinding{Sampler: layout.sampler.NativeHandle()},
		})
	}
	group, err := d.raw.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "basic_group",
		Layout:  layout.group,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("device: create bind group: %w", err)
	}
	return group, nil
}
