package framecore

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore/device"
	"github.com/gogpu/framecore/fence"
)

// frameSlot holds the recording resources of one frame in flight. The
// encoder is reset only after the fence reached value, the last value
// signaled for the slot.
type frameSlot struct {
	index   int
	encoder hal.CommandEncoder
	cmds    []hal.CommandBuffer
	fence   fence.Fence
	value   uint64

	// groups are transient bind groups recorded into the slot's frame.
	groups []hal.BindGroup
}

func newFrameSlot(dev hal.Device, fences fence.Factory, index int) (frameSlot, error) {
	label := fmt.Sprintf("frame%d", index)
	enc, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return frameSlot{}, fmt.Errorf("create command encoder %s: %w", label, err)
	}
	f, err := fences(label)
	if err != nil {
		enc.Destroy()
		return frameSlot{}, fmt.Errorf("create fence %s: %w", label, err)
	}
	return frameSlot{index: index, encoder: enc, fence: f}, nil
}

// wait blocks until the GPU finished the slot's last submission.
func (s *frameSlot) wait() error {
	if s.fence.Completed() >= s.value {
		return nil
	}
	return s.fence.Wait(s.value)
}

// begin recycles the previous command buffers and opens the encoder.
// wait must have returned first.
func (s *frameSlot) begin() error {
	if len(s.cmds) > 0 {
		s.encoder.ResetAll(s.cmds)
		s.cmds = nil
	}
	return s.encoder.BeginEncoding(fmt.Sprintf("frame%d", s.index))
}

// releaseGroups destroys the slot's transient bind groups. The slot's
// work must have completed.
func (s *frameSlot) releaseGroups(dev *device.Device) {
	for i := len(s.groups) - 1; i >= 0; i-- {
		dev.DestroyBindGroup(s.groups[i])
	}
	s.groups = s.groups[:0]
}

func (s *frameSlot) destroy() {
	if len(s.cmds) > 0 {
		s.encoder.ResetAll(s.cmds)
		s.cmds = nil
	}
	s.encoder.Destroy()
	s.fence.Destroy()
}
