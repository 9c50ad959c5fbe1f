package haltest

import (
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Encoder journals the recording calls of a noop command encoder.
type Encoder struct {
	noop.CommandEncoder
	Label   string
	journal *Journal

	// Barriers holds every texture transition in recording order.
	Barriers []hal.TextureBarrier
	// BufferBarriers holds every buffer transition in recording order.
	BufferBarriers []hal.BufferBarrier
	// Copies holds every buffer-to-texture copy region.
	Copies []hal.BufferTextureCopy
}

func (e *Encoder) BeginEncoding(label string) error {
	e.journal.Record(EventBeginEncoding, e.Label, 0)
	return nil
}

func (e *Encoder) EndEncoding() (hal.CommandBuffer, error) {
	e.journal.Record(EventEndEncoding, e.Label, 0)
	return e.CommandEncoder.EndEncoding()
}

func (e *Encoder) ResetAll(cmds []hal.CommandBuffer) {
	e.journal.Record(EventResetAll, e.Label, uint64(len(cmds)))
}

func (e *Encoder) TransitionBuffers(barriers []hal.BufferBarrier) {
	e.BufferBarriers = append(e.BufferBarriers, barriers...)
	e.journal.Record(EventTransition, e.Label, uint64(len(barriers)))
}

func (e *Encoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.Barriers = append(e.Barriers, barriers...)
	e.journal.Record(EventTransition, e.Label, uint64(len(barriers)))
}

func (e *Encoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	// Mirror the copy into the noop backing store so uploads are observable.
	if s, ok := src.(*noop.Buffer); ok {
		if d, ok := dst.(*noop.Buffer); ok {
			copyNoop(s, d, regions)
		}
	}
	e.journal.Record(EventCopy, e.Label, uint64(len(regions)))
}

func (e *Encoder) CopyBufferToTexture(src hal.Buffer, dst hal.Texture, regions []hal.BufferTextureCopy) {
	e.Copies = append(e.Copies, regions...)
	e.journal.Record(EventCopy, e.Label, uint64(len(regions)))
}
