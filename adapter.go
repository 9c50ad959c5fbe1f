package framecore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// backendPriority is the order backends are tried in when Config.Backend
// is empty.
var backendPriority = []struct {
	name    string
	variant gputypes.Backend
}{
	{"dx12", gputypes.BackendDX12},
	{"vulkan", gputypes.BackendVulkan},
	{"metal", gputypes.BackendMetal},
	{"gles", gputypes.BackendGL},
	{"noop", gputypes.BackendEmpty},
}

func backendVariant(name string) (gputypes.Backend, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, b := range backendPriority {
		if b.name == n {
			return b.variant, true
		}
	}
	return 0, false
}

func backendName(v gputypes.Backend) string {
	for _, b := range backendPriority {
		if b.variant == v {
			return b.name
		}
	}
	return strings.ToLower(v.String())
}

// BackendNames lists the backend names Config.Backend accepts, in
// priority order.
func BackendNames() []string {
	names := make([]string, len(backendPriority))
	for i, b := range backendPriority {
		names[i] = b.name
	}
	return names
}

// registeredBackends returns the hal backends linked into the binary,
// keyed by name and ordered by backendPriority.
func registeredBackends() *gpucontext.Registry[hal.Backend] {
	reg := gpucontext.NewRegistry[hal.Backend](gpucontext.WithPriority(BackendNames()...))
	for _, b := range backendPriority {
		if hb, ok := hal.GetBackend(b.variant); ok {
			reg.Register(b.name, func() hal.Backend { return hb })
		}
	}
	return reg
}

type namedBackend struct {
	name    string
	backend hal.Backend
}

// candidateBackends resolves the backends to try for cfg.
func candidateBackends(cfg Config, o *options) ([]namedBackend, error) {
	if o.backend != nil {
		return []namedBackend{{backendName(o.backend.Variant()), o.backend}}, nil
	}
	reg := registeredBackends()
	if cfg.Backend != "" {
		name := strings.ToLower(cfg.Backend)
		if !reg.Has(name) {
			return nil, fmt.Errorf("%w: %s (available: %s)", hal.ErrBackendNotFound, name,
				strings.Join(reg.Available(), ", "))
		}
		return []namedBackend{{name, reg.Get(name)}}, nil
	}
	var out []namedBackend
	for _, name := range BackendNames() {
		if reg.Has(name) {
			out = append(out, namedBackend{name, reg.Get(name)})
		}
	}
	if len(out) == 0 {
		return nil, hal.ErrBackendNotFound
	}
	return out, nil
}

// selection is the result of adapter selection. Fields are filled in
// creation order so a failed selection can be torn down in reverse.
type selection struct {
	backend     string
	instance    hal.Instance
	surface     hal.Surface
	ownsSurface bool
	adapter     hal.ExposedAdapter
	open        hal.OpenDevice
}

func (s *selection) release() {
	if s.open.Device != nil {
		s.open.Device.Destroy()
		s.open = hal.OpenDevice{}
	}
	if s.adapter.Adapter != nil {
		s.adapter.Adapter.Destroy()
		s.adapter = hal.ExposedAdapter{}
	}
	if s.surface != nil && s.ownsSurface {
		s.surface.Destroy()
	}
	s.surface = nil
	if s.instance != nil {
		s.instance.Destroy()
		s.instance = nil
	}
}

// selectAdapter walks the candidate backends and opens a device on the
// first hardware adapter found. Software adapters are skipped.
func selectAdapter(cfg Config, o *options, target SurfaceTarget, logger *slog.Logger) (*selection, error) {
	backends, err := candidateBackends(cfg, o)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, nb := range backends {
		sel, err := trySelect(nb, o, target, logger)
		if err == nil {
			return sel, nil
		}
		logger.Debug("backend rejected", "backend", nb.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", nb.name, err))
		// A device that failed to open on the requested backend is not
		// retried elsewhere.
		if !errors.Is(err, ErrNoAdapter) {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func trySelect(nb namedBackend, o *options, target SurfaceTarget, logger *slog.Logger) (_ *selection, err error) {
	sel := &selection{backend: nb.name}
	defer func() {
		if err != nil {
			sel.release()
		}
	}()

	sel.instance, err = nb.backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsAll,
	})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	if o.surface != nil {
		sel.surface = o.surface
	} else {
		sel.surface, err = sel.instance.CreateSurface(target.DisplayHandle, target.WindowHandle)
		if err != nil {
			return nil, fmt.Errorf("create surface: %w", err)
		}
		sel.ownsSurface = true
	}

	adapters := sel.instance.EnumerateAdapters(sel.surface)
	picked, ok := pickAdapter(adapters)
	for i := range adapters {
		if !ok || adapters[i].Adapter != picked.Adapter {
			adapters[i].Adapter.Destroy()
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w among %d adapters", ErrNoAdapter, len(adapters))
	}
	sel.adapter = picked

	sel.open, err = openDevice(picked, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("adapter selected",
		"backend", nb.name,
		"name", picked.Info.Name,
		"type", adapterType(picked.Info.DeviceType).String(),
		"driver", picked.Info.Driver)
	return sel, nil
}

// pickAdapter prefers discrete, then integrated, then any other non
// software adapter.
func pickAdapter(adapters []hal.ExposedAdapter) (hal.ExposedAdapter, bool) {
	rank := func(t gputypes.DeviceType) int {
		switch t {
		case gputypes.DeviceTypeDiscreteGPU:
			return 0
		case gputypes.DeviceTypeIntegratedGPU:
			return 1
		case gputypes.DeviceTypeCPU:
			return -1
		default:
			return 2
		}
	}
	best, bestRank := -1, 0
	for i := range adapters {
		r := rank(adapters[i].Info.DeviceType)
		if r < 0 {
			continue
		}
		if best < 0 || r < bestRank {
			best, bestRank = i, r
		}
	}
	if best < 0 {
		return hal.ExposedAdapter{}, false
	}
	return adapters[best], true
}

// openDevice opens with the adapter's reported limits and falls back to
// the WebGPU defaults.
func openDevice(a hal.ExposedAdapter, logger *slog.Logger) (hal.OpenDevice, error) {
	limits := a.Capabilities.Limits
	open, err := a.Adapter.Open(0, limits)
	if err == nil {
		return open, nil
	}
	defaults := gputypes.DefaultLimits()
	if limits == defaults {
		return hal.OpenDevice{}, fmt.Errorf("open device: %w", err)
	}
	logger.Warn("device open failed with adapter limits, retrying with defaults", "err", err)
	open, err2 := a.Adapter.Open(0, defaults)
	if err2 != nil {
		return hal.OpenDevice{}, fmt.Errorf("open device: %w", errors.Join(err, err2))
	}
	return open, nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
