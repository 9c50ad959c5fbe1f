// Package scene drives a framecore.Context through a frame loop.
//
// A Scene owns the GPU resources it creates in Init and records its draw
// work in Render. The Runner calls the hooks in the order
//
//	Init
//	loop: BeginFrame, Update, Render, EndFrame
//	Release
//
// and times each frame with a Timer.
package scene

import "github.com/gogpu/framecore"

// Scene is the application side of the frame loop.
type Scene interface {
	// Init creates the scene's resources. It runs once, outside any frame.
	Init(ctx *framecore.Context) error

	// Update advances simulation state. It runs while a frame is recording
	// and must not record GPU work.
	Update(t FrameTime) error

	// Render records the frame's GPU work through ctx.CommandEncoder.
	Render(ctx *framecore.Context) error

	// Release frees the scene's resources. The GPU is idle when it runs.
	// It is also called after a failed Init and must skip whatever Init
	// did not create.
	Release()
}

// Funcs adapts plain functions to Scene. Nil fields are no-ops.
type Funcs struct {
	InitFunc    func(*framecore.Context) error
	UpdateFunc  func(FrameTime) error
	RenderFunc  func(*framecore.Context) error
	ReleaseFunc func()
}

func (f Funcs) Init(ctx *framecore.Context) error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc(ctx)
}

func (f Funcs) Update(t FrameTime) error {
	if f.UpdateFunc == nil {
		return nil
	}
	return f.UpdateFunc(t)
}

func (f Funcs) Render(ctx *framecore.Context) error {
	if f.RenderFunc == nil {
		return nil
	}
	return f.RenderFunc(ctx)
}

func (f Funcs) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}
