package framecore

import (
	"io/fs"
	"log/slog"

	"github.com/gogpu/framecore/fence"
	"github.com/gogpu/framecore/shader"
	"github.com/gogpu/wgpu/hal"
)

// SurfaceTarget holds the native handles a presentation surface is created
// from: HDC/HWND on Windows, Display*/Window on X11, NSWindow/NSView on
// macOS. Headless backends ignore them.
type SurfaceTarget struct {
	DisplayHandle uintptr
	WindowHandle  uintptr
}

// Option configures a Context during creation.
//
// Example:
//
//	ctx, err := framecore.New(cfg, target,
//	    framecore.WithLogger(logger),
//	    framecore.WithBackend(noop.API{}))
type Option func(*options)

type options struct {
	backend  hal.Backend
	surface  hal.Surface
	fences   fence.Factory
	logger   *slog.Logger
	shaderFS fs.FS
	shaders  []shader.Option
}

// WithBackend uses b instead of the registered backends. Config.Backend is
// ignored.
func WithBackend(b hal.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithSurface presents to an already created surface instead of creating
// one from the SurfaceTarget. The Context unconfigures it on Close but
// does not destroy it.
func WithSurface(s hal.Surface) Option {
	return func(o *options) { o.surface = s }
}

// WithFenceFactory replaces the factory used for frame, idle and upload
// fences.
func WithFenceFactory(f fence.Factory) Option {
	return func(o *options) { o.fences = f }
}

// WithLogger sets the context logger. The default is Logger().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithShaderFS reads shader sources from fsys instead of Config.DataRoot.
func WithShaderFS(fsys fs.FS) Option {
	return func(o *options) { o.shaderFS = fsys }
}

// WithShaderOptions appends options to the shader cache, after the ones
// derived from Config.
func WithShaderOptions(opts ...shader.Option) Option {
	return func(o *options) { o.shaders = append(o.shaders, opts...) }
}
