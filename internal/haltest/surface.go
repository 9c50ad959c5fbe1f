package haltest

import (
	"sync"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Surface journals configuration and acquisition.
type Surface struct {
	noop.Surface

	Journal *Journal

	mu         sync.Mutex
	configures int
	last       hal.SurfaceConfiguration
	acquireErr []error
}

// NewSurface returns a surface recording into journal.
func NewSurface(journal *Journal) *Surface {
	return &Surface{Journal: journal}
}

// ScriptAcquire queues errors returned by successive AcquireTexture calls.
func (s *Surface) ScriptAcquire(errs ...error) {
	s.mu.Lock()
	s.acquireErr = append(s.acquireErr, errs...)
	s.mu.Unlock()
}

// Configures returns the number of Configure calls.
func (s *Surface) Configures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configures
}

// LastConfig returns the most recent configuration.
func (s *Surface) LastConfig() hal.SurfaceConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Surface) Configure(device hal.Device, cfg *hal.SurfaceConfiguration) error {
	s.mu.Lock()
	s.configures++
	s.last = *cfg
	s.mu.Unlock()
	s.Journal.Record(EventConfigure, "", uint64(cfg.Width)<<32|uint64(cfg.Height))
	return s.Surface.Configure(device, cfg)
}

func (s *Surface) Unconfigure(device hal.Device) {
	s.Journal.Record(EventUnconfigure, "", 0)
	s.Surface.Unconfigure(device)
}

func (s *Surface) AcquireTexture(f hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	s.mu.Lock()
	var err error
	if len(s.acquireErr) > 0 {
		err = s.acquireErr[0]
		s.acquireErr = s.acquireErr[1:]
	}
	s.mu.Unlock()
	s.Journal.Record(EventAcquire, "", 0)
	if err != nil {
		return nil, err
	}
	return s.Surface.AcquireTexture(f)
}

// LatencySurface is a Surface that also paces the CPU like a frame latency
// waitable object.
type LatencySurface struct {
	*Surface
	waits int
	Err   error
}

// NewLatencySurface returns a latency-paced surface.
func NewLatencySurface(journal *Journal) *LatencySurface {
	return &LatencySurface{Surface: NewSurface(journal)}
}

// WaitForFrameLatency records the wait and returns Err.
func (s *LatencySurface) WaitForFrameLatency() error {
	s.waits++
	s.Journal.Record(EventLatencyWait, "", uint64(s.waits))
	return s.Err
}

// Waits returns the number of latency waits.
func (s *LatencySurface) Waits() int { return s.waits }
