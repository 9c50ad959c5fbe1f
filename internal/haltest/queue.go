package haltest

import (
	"image"
	"sync"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Queue journals submissions and presents. With Lag set, submissions stay
// incomplete until the paired Device drains them in WaitIdle.
type Queue struct {
	noop.Queue

	Journal *Journal
	Lag     bool

	mu         sync.Mutex
	submitted  uint64
	completed  uint64
	presentErr []error
	presents   int
}

// ScriptPresent queues errors returned by successive Present calls. A nil
// entry means success.
func (q *Queue) ScriptPresent(errs ...error) {
	q.mu.Lock()
	q.presentErr = append(q.presentErr, errs...)
	q.mu.Unlock()
}

// Presents returns the number of successful presents.
func (q *Queue) Presents() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.presents
}

func (q *Queue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	q.submitted++
	idx := q.submitted
	if !q.Lag {
		q.completed = idx
	}
	q.mu.Unlock()
	q.Journal.Record(EventSubmit, "", idx)
	return idx, nil
}

func (q *Queue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	q.Journal.Record(EventWriteBuffer, "", offset)
	return q.Queue.WriteBuffer(buf, offset, data)
}

func (q *Queue) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

func (q *Queue) Present(surface hal.Surface, tex hal.SurfaceTexture, damage []image.Rectangle) error {
	q.mu.Lock()
	var err error
	if len(q.presentErr) > 0 {
		err = q.presentErr[0]
		q.presentErr = q.presentErr[1:]
	}
	if err == nil {
		q.presents++
	}
	q.mu.Unlock()
	q.Journal.Record(EventPresent, "", 0)
	return err
}

func (q *Queue) drain() {
	q.mu.Lock()
	q.completed = q.submitted
	q.mu.Unlock()
}
