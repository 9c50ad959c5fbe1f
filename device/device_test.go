package device

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framecore/descriptor"
	"github.com/gogpu/framecore/internal/haltest"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

type fixture struct {
	journal *haltest.Journal
	hal     *haltest.Device
	fences  []*haltest.Fence
	dev     *Device
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{journal: &haltest.Journal{}}
	f.hal = haltest.NewDevice(f.journal)
	opts = append([]Option{WithFenceFactory(haltest.FenceFactory(f.journal, &f.fences))}, opts...)
	dev, err := New(f.hal, f.hal.Queue, opts...)
	require.NoError(t, err)
	f.dev = dev
	t.Cleanup(dev.Release)
	return f
}

func (f *fixture) uploadEncoder(t *testing.T) *haltest.Encoder {
	t.Helper()
	encs := f.hal.Encoders()
	require.Len(t, encs, 1)
	return encs[0]
}

func readBuffer(t *testing.T, dev hal.Device, buf hal.Buffer, size uint64) []byte {
	t.Helper()
	m, err := dev.MapBuffer(buf, 0, size)
	require.NoError(t, err)
	return bytes.Clone(unsafe.Slice((*byte)(m.Ptr), size))
}

func TestCreateBufferFinalStates(t *testing.T) {
	tests := []struct {
		kind Kind
		want State
	}{
		{KindVertex, StateVertexAndConstant},
		{KindUniform, StateVertexAndConstant},
		{KindIndex, StateIndex},
		{KindRaw, StateGenericRead},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := newFixture(t)
			buf, err := f.dev.CreateBuffer(tt.kind, make([]byte, 16), 16)
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.State())
			assert.Equal(t, tt.kind, buf.Kind())
		})
	}
}

func TestCreateVertexBufferUploadsData(t *testing.T) {
	f := newFixture(t)
	data := make([]byte, 36)
	for i := range data {
		data[i] = byte(i + 1)
	}

	buf, err := f.dev.CreateBuffer(KindVertex, data, uint64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, data, readBuffer(t, f.hal, buf.Raw(), 36))
	assert.Equal(t, 1, f.hal.LiveBuffers(), "staging buffer must be destroyed")

	enc := f.uploadEncoder(t)
	require.Len(t, enc.BufferBarriers, 2)
	assert.Equal(t, gputypes.BufferUsageNone, enc.BufferBarriers[0].Usage.OldUsage)
	assert.Equal(t, gputypes.BufferUsageCopyDst, enc.BufferBarriers[0].Usage.NewUsage)
	assert.Equal(t, gputypes.BufferUsageCopyDst, enc.BufferBarriers[1].Usage.OldUsage)
	assert.Equal(t, gputypes.BufferUsageVertex|gputypes.BufferUsageUniform, enc.BufferBarriers[1].Usage.NewUsage)
}

func TestCreateBufferIsSynchronous(t *testing.T) {
	f := newFixture(t)
	_, err := f.dev.CreateBuffer(KindIndex, []byte{0, 0, 1, 0, 2, 0}, 6)
	require.NoError(t, err)

	require.Len(t, f.fences, 1)
	up := f.fences[0]
	assert.Equal(t, uint64(1), f.dev.UploadFenceValue())
	assert.Equal(t, uint64(1), up.Completed())
	assert.Equal(t, 1, up.Waits())

	// submit, signal and wait happen in order before the encoder is reset.
	got := f.journal.Filter(haltest.EventSubmit, haltest.EventFenceSignal, haltest.EventFenceWait, haltest.EventResetAll)
	kinds := make([]string, len(got))
	for i, e := range got {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []string{
		haltest.EventSubmit, haltest.EventFenceSignal, haltest.EventFenceWait, haltest.EventResetAll,
	}, kinds)
}

func TestCreateBufferUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.dev.CreateBuffer(Kind(42), []byte{1}, 4)
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Zero(t, f.journal.Count(haltest.EventSubmit))
	assert.Zero(t, f.hal.LiveBuffers())
}

func TestCreateBufferInvalidSize(t *testing.T) {
	f := newFixture(t)
	_, err := f.dev.CreateBuffer(KindVertex, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = f.dev.CreateBuffer(KindVertex, make([]byte, 8), 4)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCreateBufferCreationFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("out of memory")
	f.hal.FailBuffer = boom

	_, err := f.dev.CreateBuffer(KindVertex, []byte{1, 2, 3, 4}, 4)
	require.ErrorIs(t, err, boom)

	// The upload context is free again.
	require.NoError(t, f.dev.BeginUpload())
	require.NoError(t, f.dev.EndUpload())
}

func TestTextureFootprint(t *testing.T) {
	tests := []struct {
		w, h, pitch   uint32
		wantRowPitch  uint32
		wantTotalSize uint64
	}{
		{3, 2, 256, 256, 512},
		{64, 4, 256, 256, 1024},
		{65, 1, 256, 512, 512},
		{3, 2, 4, 12, 24},
	}
	for _, tt := range tests {
		fp := TextureFootprint(tt.w, tt.h, 4, tt.pitch)
		if fp.RowPitch != tt.wantRowPitch || fp.Size != tt.wantTotalSize {
			t.Errorf("TextureFootprint(%d, %d, 4, %d) = {RowPitch: %d, Size: %d}, want {%d, %d}",
				tt.w, tt.h, tt.pitch, fp.RowPitch, fp.Size, tt.wantRowPitch, tt.wantTotalSize)
		}
	}
}

func TestCreateTexture2DRGBA8(t *testing.T) {
	f := newFixture(t)
	pixels := make([]byte, 4*4*4)

	tex, err := f.dev.CreateTexture2DRGBA8(pixels, 4, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, StatePixelShaderResource, tex.State())
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, tex.Format())

	enc := f.uploadEncoder(t)
	require.Len(t, enc.Copies, 1)
	assert.Equal(t, uint32(256), enc.Copies[0].BufferLayout.BytesPerRow)
	assert.Equal(t, uint32(4), enc.Copies[0].BufferLayout.RowsPerImage)
	require.Len(t, enc.Barriers, 2)
	assert.Equal(t, gputypes.TextureUsageTextureBinding, enc.Barriers[1].Usage.NewUsage)
	assert.Zero(t, f.hal.LiveBuffers())
}

func TestCreateTexture2DRGBA8Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.dev.CreateTexture2DRGBA8(nil, 0, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = f.dev.CreateTexture2DRGBA8(make([]byte, 64), 4, 4, 8)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = f.dev.CreateTexture2DRGBA8(make([]byte, 10), 4, 4, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCreateTextureFromImage(t *testing.T) {
	f := newFixture(t)
	img := image.NewNRGBA(image.Rect(2, 2, 6, 5))
	img.Set(2, 2, color.NRGBA{R: 255, A: 255})

	tex, err := f.dev.CreateTextureFromImage(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tex.Width())
	assert.Equal(t, uint32(3), tex.Height())
}

func TestLoadTexture(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "checker.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())

	tex, err := f.dev.LoadTexture(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), tex.Width())

	_, err = f.dev.LoadTexture(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateConstantViewRoundsSize(t *testing.T) {
	f := newFixture(t)
	buf, err := f.dev.CreateBuffer(KindUniform, make([]byte, 36), 36)
	require.NoError(t, err)
	assert.Equal(t, uint64(36), buf.Size())
	assert.Equal(t, uint64(ConstantAlignment), buf.Allocated())

	h, err := f.dev.CreateConstantView(buf, 36)
	require.NoError(t, err)
	assert.True(t, h.IsValid())
	assert.NotZero(t, h.GPU)

	d, err := f.dev.Descriptors().Lookup(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), d.Size)
	assert.Equal(t, uint32(1), f.dev.Descriptors().Cursor())
}

func TestConstantViewFitsBuffer(t *testing.T) {
	tests := []struct {
		bufSize, viewSize uint64
		wantErr           bool
	}{
		{80, 80, false},
		{36, 36, false},
		{256, 256, false},
		{300, 260, false},
		{256, 257, true},
		{16, 300, true},
	}
	for _, tt := range tests {
		f := newFixture(t)
		buf, err := f.dev.CreateBuffer(KindUniform, nil, tt.bufSize)
		require.NoError(t, err)

		var allocated uint64
		for _, e := range f.journal.Filter(haltest.EventCreateBuffer) {
			if e.Name == buf.Label() {
				allocated = e.Value
			}
		}
		assert.Equal(t, buf.Allocated(), allocated)

		h, err := f.dev.CreateConstantView(buf, tt.viewSize)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSize) {
				t.Errorf("CreateConstantView(%d byte buffer, %d) error = %v, want ErrInvalidSize", tt.bufSize, tt.viewSize, err)
			}
			assert.Zero(t, f.dev.Descriptors().Cursor())
			continue
		}
		require.NoError(t, err)
		d, err := f.dev.Descriptors().Lookup(h)
		require.NoError(t, err)
		if d.Size > allocated {
			t.Errorf("constant view binds %d bytes of a %d byte allocation", d.Size, allocated)
		}
	}
}

func TestShaderResourceViewLifetime(t *testing.T) {
	f := newFixture(t)
	tex, err := f.dev.CreateTexture2DRGBA8(make([]byte, 16), 2, 2, 0)
	require.NoError(t, err)

	h, err := f.dev.CreateShaderResourceView2D(tex, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	d, err := f.dev.Descriptors().Lookup(h)
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, d.Format)
	assert.Equal(t, 1, f.hal.LiveViews())

	f.dev.Release()
	assert.Zero(t, f.hal.LiveViews())
}

func TestDescriptorExhaustion(t *testing.T) {
	f := newFixture(t, WithDescriptorCapacity(1))
	buf, err := f.dev.CreateBuffer(KindUniform, nil, 16)
	require.NoError(t, err)

	_, err = f.dev.CreateConstantView(buf, 16)
	require.NoError(t, err)
	_, err = f.dev.CreateConstantView(buf, 16)
	assert.ErrorIs(t, err, descriptor.ErrCapacity)
}

func TestBasicBindingLayout(t *testing.T) {
	entries := BasicLayoutEntries(true)
	require.Len(t, entries, 3)
	assert.Equal(t, gputypes.ShaderStagesAll, entries[0].Visibility)
	assert.Equal(t, gputypes.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, gputypes.ShaderStageFragment, entries[1].Visibility)
	assert.Equal(t, gputypes.TextureViewDimension2D, entries[1].Texture.ViewDimension)
	assert.Len(t, BasicLayoutEntries(false), 2)

	f := newFixture(t)
	l, err := f.dev.CreateBasicBindingLayout(true)
	require.NoError(t, err)
	assert.True(t, l.HasSampler())
	assert.NotNil(t, l.Pipeline())

	l, err = f.dev.CreateBasicBindingLayout(false)
	require.NoError(t, err)
	assert.False(t, l.HasSampler())
}

func TestCreateBindGroup(t *testing.T) {
	f := newFixture(t)
	buf, err := f.dev.CreateBuffer(KindUniform, nil, 64)
	require.NoError(t, err)
	tex, err := f.dev.CreateTexture2DRGBA8(make([]byte, 16), 2, 2, 0)
	require.NoError(t, err)
	cbv, err := f.dev.CreateConstantView(buf, 64)
	require.NoError(t, err)
	srv, err := f.dev.CreateShaderResourceView2D(tex, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	layout, err := f.dev.CreateBasicBindingLayout(true)
	require.NoError(t, err)

	group, err := f.dev.CreateBindGroup(layout, cbv, srv)
	require.NoError(t, err)
	assert.NotNil(t, group)

	// An allocated but never written slot cannot be bound.
	empty, err := f.dev.Descriptors().Allocate(1)
	require.NoError(t, err)
	_, err = f.dev.CreateBindGroup(layout, cbv, empty)
	assert.ErrorIs(t, err, descriptor.ErrInvalidHandle)
}

func TestCreateConstantViewIn(t *testing.T) {
	f := newFixture(t)
	frame, err := descriptor.New(descriptor.KindResource, 4)
	require.NoError(t, err)
	buf, err := f.dev.CreateBuffer(KindUniform, nil, 2*ConstantAlignment)
	require.NoError(t, err)

	h, err := f.dev.CreateConstantViewIn(frame, buf, ConstantAlignment, 80)
	require.NoError(t, err)
	assert.Zero(t, f.dev.Descriptors().Cursor())
	d, err := frame.Lookup(h)
	require.NoError(t, err)
	binding, ok := d.Resource.(gputypes.BufferBinding)
	require.True(t, ok)
	assert.Equal(t, uint64(ConstantAlignment), binding.Offset)
	assert.Equal(t, uint64(ConstantAlignment), binding.Size)

	_, err = f.dev.CreateConstantViewIn(frame, buf, 16, 80)
	assert.ErrorIs(t, err, ErrInvalidSize, "unaligned offset")
	_, err = f.dev.CreateConstantViewIn(frame, buf, 2*ConstantAlignment, 80)
	assert.ErrorIs(t, err, ErrInvalidSize, "past the end")
	_, err = f.dev.CreateConstantViewIn(frame, buf, ConstantAlignment, 300)
	assert.ErrorIs(t, err, ErrInvalidSize, "overruns the end")
	_, err = f.dev.CreateConstantViewIn(nil, buf, 0, 80)
	assert.ErrorIs(t, err, ErrNilResource)
	assert.Equal(t, uint32(1), frame.Cursor())
}

func TestTransientBindGroup(t *testing.T) {
	f := newFixture(t)
	frame, err := descriptor.New(descriptor.KindResource, 4)
	require.NoError(t, err)
	buf, err := f.dev.CreateBuffer(KindUniform, nil, 80)
	require.NoError(t, err)
	tex, err := f.dev.CreateTexture2DRGBA8(make([]byte, 16), 2, 2, 0)
	require.NoError(t, err)
	srv, err := f.dev.CreateShaderResourceView2D(tex, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	layout, err := f.dev.CreateBasicBindingLayout(false)
	require.NoError(t, err)
	cbv, err := f.dev.CreateConstantViewIn(frame, buf, 0, 80)
	require.NoError(t, err)

	_, err = f.dev.CreateBindGroup(layout, cbv, srv)
	assert.ErrorIs(t, err, descriptor.ErrInvalidHandle, "persistent groups only see the persistent heap")

	group, err := f.dev.CreateTransientBindGroup(layout, frame, cbv, srv)
	require.NoError(t, err)
	assert.Equal(t, 1, f.hal.LiveGroups())
	f.dev.DestroyBindGroup(group)
	assert.Zero(t, f.hal.LiveGroups())

	frame.Reset()
	_, err = f.dev.CreateTransientBindGroup(layout, frame, cbv, srv)
	assert.ErrorIs(t, err, descriptor.ErrInvalidHandle)
}

func TestWriteBuffer(t *testing.T) {
	f := newFixture(t)
	buf, err := f.dev.CreateBuffer(KindUniform, nil, 2*ConstantAlignment)
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, f.dev.WriteBuffer(buf, ConstantAlignment, data))
	assert.Equal(t, 1, f.journal.Count(haltest.EventWriteBuffer))
	got := readBuffer(t, f.hal, buf.Raw(), buf.Allocated())
	assert.Equal(t, data, got[ConstantAlignment:ConstantAlignment+8])
	assert.Equal(t, make([]byte, 8), got[:8])

	tests := []struct {
		offset uint64
		n      int
	}{
		{2, 4},
		{0, 3},
		{2 * ConstantAlignment, 4},
		{2*ConstantAlignment - 4, 8},
	}
	for _, tt := range tests {
		if err := f.dev.WriteBuffer(buf, tt.offset, make([]byte, tt.n)); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("WriteBuffer(offset %d, %d bytes) error = %v, want ErrInvalidSize", tt.offset, tt.n, err)
		}
	}
	assert.Equal(t, 1, f.journal.Count(haltest.EventWriteBuffer))
}

func TestTransitionSkipsSameState(t *testing.T) {
	f := newFixture(t)
	buf, err := f.dev.CreateBuffer(KindVertex, nil, 16)
	require.NoError(t, err)
	enc := f.uploadEncoder(t)
	before := len(enc.BufferBarriers)

	_, err = f.dev.Transition(buf, StateCopyDest)
	assert.ErrorIs(t, err, ErrNoUpload)

	require.NoError(t, f.dev.BeginUpload())
	recorded, err := f.dev.Transition(buf, StateVertexAndConstant)
	require.NoError(t, err)
	assert.False(t, recorded)
	recorded, err = f.dev.Transition(buf, StateGenericRead)
	require.NoError(t, err)
	assert.True(t, recorded)
	require.NoError(t, f.dev.EndUpload())

	assert.Len(t, enc.BufferBarriers, before+1)
	assert.Equal(t, StateGenericRead, buf.State())
}

func TestUploadBracketing(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.dev.EndUpload(), ErrNoUpload)
	require.NoError(t, f.dev.BeginUpload())
	assert.ErrorIs(t, f.dev.BeginUpload(), ErrUploadActive)
	_, err := f.dev.CreateBuffer(KindVertex, nil, 4)
	assert.ErrorIs(t, err, ErrUploadActive)
	f.dev.AbortUpload()
	require.NoError(t, f.dev.BeginUpload())
	require.NoError(t, f.dev.EndUpload())
}

func TestReleased(t *testing.T) {
	f := newFixture(t)
	f.dev.Release()
	f.dev.Release()

	_, err := f.dev.CreateBuffer(KindVertex, nil, 4)
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, f.dev.BeginUpload(), ErrReleased)
	assert.True(t, f.fences[0].Destroyed())
}

func TestStateString(t *testing.T) {
	if got := StateVertexAndConstant.String(); got != "VertexAndConstant" {
		t.Errorf("String() = %q, want %q", got, "VertexAndConstant")
	}
	if got := State(200).String(); got != "Unknown(200)" {
		t.Errorf("String() = %q, want %q", got, "Unknown(200)")
	}
}
