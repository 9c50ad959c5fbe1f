package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framecore"
	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/device"
	"github.com/gogpu/framecore/scene"
	"github.com/gogpu/framecore/shader"
)

const (
	shaderPath   = "shader/triangle.wgsl"
	vertexStride = 5 * 4
	constantSize = 16*4 + 4*4
	checkerSize  = 64
)

var clearColor = gputypes.Color{R: 0.6, G: 0.6, B: 0.1, A: 1}

// Position and texture coordinate of each corner.
var triangleVertices = [...]float32{
	0.0, 0.5, 0.0, 0.5, 0.0,
	0.5, -0.5, 0.0, 1.0, 1.0,
	-0.5, -0.5, 0.0, 0.0, 1.0,
}

var triangleIndices = [...]uint32{0, 1, 2}

// retired is a pipeline kept alive until the frames that may still use
// it have completed.
type retired struct {
	pipeline hal.RenderPipeline
	vs, ps   hal.ShaderModule
	until    uint64
}

// triangleScene draws a textured triangle over a cleared rectangle.
type triangleScene struct {
	texturePath string
	logger      *slog.Logger

	raw      hal.Device
	dev      *device.Device
	shaders  *shader.Cache
	format   gputypes.TextureFormat
	inFlight uint64

	vertices  *device.Buffer
	indices   *device.Buffer
	constants *device.Buffer
	texture   *device.Texture
	srv       descriptor.Handle
	layout    *device.BindingLayout
	tint      float32

	vs, ps   hal.ShaderModule
	pipeline hal.RenderPipeline
	retired  []retired

	reload atomic.Bool
	frames uint64
}

func newTriangleScene(texturePath string, logger *slog.Logger) *triangleScene {
	return &triangleScene{texturePath: texturePath, logger: logger}
}

// shaderChanged is called from the shader watcher goroutine.
func (s *triangleScene) shaderChanged(path string) {
	if path == shaderPath {
		s.reload.Store(true)
	}
}

func (s *triangleScene) Init(ctx *framecore.Context) error {
	s.dev = ctx.Device()
	s.raw = s.dev.Raw()
	s.shaders = ctx.Shaders()
	s.format = ctx.SurfaceFormat()
	s.inFlight = uint64(ctx.Config().FramesInFlight)

	var err error
	s.vertices, err = s.dev.CreateBuffer(device.KindVertex, floatBytes(triangleVertices[:]), uint64(len(triangleVertices)*4))
	if err != nil {
		return err
	}
	s.indices, err = s.dev.CreateBuffer(device.KindIndex, uintBytes(triangleIndices[:]), uint64(len(triangleIndices)*4))
	if err != nil {
		return err
	}
	// One constant range per frame slot, rewritten while the slot is idle.
	s.constants, err = s.dev.CreateBuffer(device.KindUniform, nil, s.inFlight*device.ConstantAlignment)
	if err != nil {
		return err
	}

	if s.texturePath != "" {
		s.texture, err = s.dev.LoadTexture(s.texturePath)
	} else {
		s.texture, err = s.dev.CreateTextureFromImage(checkerboard(checkerSize))
	}
	if err != nil {
		return err
	}
	if s.srv, err = s.dev.CreateShaderResourceView2D(s.texture, gputypes.TextureFormatRGBA8Unorm); err != nil {
		return err
	}

	if s.layout, err = s.dev.CreateBasicBindingLayout(true); err != nil {
		return err
	}

	s.pipeline, s.vs, s.ps, err = s.buildPipeline()
	return err
}

func (s *triangleScene) buildPipeline() (hal.RenderPipeline, hal.ShaderModule, hal.ShaderModule, error) {
	vsOut, err := s.shaders.CompileFromFile(shader.StageVertex, shaderPath, "vs_main")
	if err != nil {
		return nil, nil, nil, err
	}
	psOut, err := s.shaders.CompileFromFile(shader.StagePixel, shaderPath, "ps_main")
	if err != nil {
		return nil, nil, nil, err
	}
	vs, err := s.shaders.CreateModule(s.raw, vsOut)
	if err != nil {
		return nil, nil, nil, err
	}
	ps, err := s.shaders.CreateModule(s.raw, psOut)
	if err != nil {
		s.raw.DestroyShaderModule(vs)
		return nil, nil, nil, err
	}

	pipeline, err := s.raw.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "triangle",
		Layout: s.layout.Pipeline(),
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: vsOut.Entry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Primitive:   gputypes.DefaultPrimitiveState(),
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     ps,
			EntryPoint: psOut.Entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    s.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		s.raw.DestroyShaderModule(ps)
		s.raw.DestroyShaderModule(vs)
		return nil, nil, nil, fmt.Errorf("create triangle pipeline: %w", err)
	}
	return pipeline, vs, ps, nil
}

// Update pulses the tint once every two seconds.
func (s *triangleScene) Update(t scene.FrameTime) error {
	s.tint = 0.75 + 0.25*float32(math.Cos(math.Pi*t.Total.Seconds()))
	return nil
}

func (s *triangleScene) Render(ctx *framecore.Context) error {
	s.frames++
	s.collect()
	if s.reload.Swap(false) {
		s.rebuild()
	}

	offset := uint64(ctx.FrameIndex()) * device.ConstantAlignment
	if err := s.dev.WriteBuffer(s.constants, offset, constantData(s.tint)); err != nil {
		return err
	}
	cbv, err := ctx.FrameConstantView(s.constants, offset, constantSize)
	if err != nil {
		return err
	}
	group, err := ctx.FrameBindGroup(s.layout, cbv, s.srv)
	if err != nil {
		return err
	}

	enc := ctx.CommandEncoder()
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "triangle",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       ctx.BackBufferView(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor,
		}},
	})
	w, h := ctx.Width(), ctx.Height()
	pass.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	x, y, sw, sh := clearRect(w, h)
	pass.SetScissorRect(x, y, sw, sh)
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.SetVertexBuffer(0, s.vertices.Raw(), 0)
	pass.SetIndexBuffer(s.indices.Raw(), gputypes.IndexFormatUint32, 0)
	pass.DrawIndexed(uint32(len(triangleIndices)), 1, 0, 0, 0)
	pass.End()
	return nil
}

// rebuild swaps in a pipeline built from the current shader source. A
// failed compile keeps the old pipeline.
func (s *triangleScene) rebuild() {
	pipeline, vs, ps, err := s.buildPipeline()
	if err != nil {
		s.logger.Warn("shader reload failed, keeping previous pipeline", "err", err)
		return
	}
	s.retired = append(s.retired, retired{
		pipeline: s.pipeline, vs: s.vs, ps: s.ps,
		until: s.frames + s.inFlight,
	})
	s.pipeline, s.vs, s.ps = pipeline, vs, ps
	s.logger.Info("shader reloaded", "path", shaderPath)
}

// collect destroys retired pipelines whose frames have completed.
func (s *triangleScene) collect() {
	kept := s.retired[:0]
	for _, r := range s.retired {
		if s.frames <= r.until {
			kept = append(kept, r)
			continue
		}
		s.destroy(r)
	}
	s.retired = kept
}

func (s *triangleScene) destroy(r retired) {
	if r.pipeline != nil {
		s.raw.DestroyRenderPipeline(r.pipeline)
	}
	if r.ps != nil {
		s.raw.DestroyShaderModule(r.ps)
	}
	if r.vs != nil {
		s.raw.DestroyShaderModule(r.vs)
	}
}

func (s *triangleScene) Release() {
	if s.raw == nil {
		return
	}
	for _, r := range s.retired {
		s.destroy(r)
	}
	s.retired = nil
	s.destroy(retired{pipeline: s.pipeline, vs: s.vs, ps: s.ps})
	s.pipeline, s.vs, s.ps = nil, nil, nil

	s.dev.DestroyTexture(s.texture)
	s.dev.DestroyBuffer(s.constants)
	s.dev.DestroyBuffer(s.indices)
	s.dev.DestroyBuffer(s.vertices)
	s.logger.Debug("triangle scene released", "frames", s.frames)
}

// constantData packs an identity transform and a grey tint of level v.
func constantData(v float32) []byte {
	m := [...]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
		v, v, v, 1,
	}
	return floatBytes(m[:])
}

// clearRect is the drawn region: origin (150, 30), half the back-buffer,
// clamped to it.
func clearRect(w, h uint32) (x, y, rw, rh uint32) {
	x, y = min(150, w), min(30, h)
	rw, rh = min(w/2, w-x), min(h/2, h-y)
	return x, y, rw, rh
}

func checkerboard(n int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, n, n))
	light := color.NRGBA{R: 230, G: 230, B: 230, A: 255}
	dark := color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	cell := max(n/8, 1)
	for y := range n {
		for x := range n {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func floatBytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func uintBytes(v []uint32) []byte {
	out := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(out[4*i:], u)
	}
	return out
}
