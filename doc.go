// Package framecore is the GPU execution core of a real-time renderer.
//
// A [Context] owns the device, its queue and the presentation surface. It
// paces a fixed number of frames in flight: every frame slot has its own
// command encoder and fence, and a slot's encoder is only reset once the
// GPU reached the fence value the slot last signaled.
//
// # Frame loop
//
//	ctx, err := framecore.New(framecore.DefaultConfig(), target)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	for running {
//	    if err := ctx.BeginFrame(); err != nil {
//	        return err
//	    }
//	    enc := ctx.CommandEncoder()
//	    // record into enc, targeting ctx.BackBufferView()
//	    if err := ctx.EndFrame(vsync); err != nil {
//	        return err
//	    }
//	}
//
// A frame that cannot be finished is dropped with [Context.AbortFrame].
// Package scene wraps this loop around a Scene and a frame timer.
//
// Resources are created through [Context.Device]; every creation call
// uploads synchronously. Shaders come from [Context.Shaders].
//
// # Errors
//
// GPU creation, submission and presentation failures are returned as
// [*FatalError]. Calls in the wrong lifecycle state return [*StateError]
// wrapping [ErrAlreadyRecording], [ErrNotRecording] or [ErrReleased].
//
// # Backends
//
// Backends are picked from the hal registry in the order dx12, vulkan,
// metal, gles, noop; software adapters are skipped. Link backends in by
// importing github.com/gogpu/wgpu/hal/allbackends or hal/noop, or pass one
// with [WithBackend].
package framecore
