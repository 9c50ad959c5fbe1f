package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const rgba8Bytes = 4

// Footprint is the staging layout of a 2D texture upload.
type Footprint struct {
	// RowPitch is the byte distance between rows, aligned to the device's
	// copy pitch alignment.
	RowPitch uint32
	// Rows is the number of texel rows.
	Rows uint32
	// RowBytes is the number of meaningful bytes in a row.
	RowBytes uint32
	// Size is the total staging size in bytes.
	Size uint64
}

// TextureFootprint computes the upload footprint of a width×height texture
// with bytesPerTexel bytes per texel and rows aligned to pitch.
func TextureFootprint(width, height, bytesPerTexel, pitch uint32) Footprint {
	row := width * bytesPerTexel
	rowPitch := uint32(alignUp(uint64(row), uint64(pitch)))
	return Footprint{
		RowPitch: rowPitch,
		Rows:     height,
		RowBytes: row,
		Size:     uint64(rowPitch) * uint64(height),
	}
}

// Footprint returns the upload footprint of an RGBA8 texture on d.
func (d *Device) Footprint(width, height uint32) Footprint {
	return TextureFootprint(width, height, rgba8Bytes, d.pitch)
}

// CreateTexture2DRGBA8 creates a sampled 2D RGBA8 texture from pixels.
// rowStride is the byte distance between source rows; zero means tightly
// packed. The texture rests in StatePixelShaderResource when
// CreateTexture2DRGBA8 returns.
func (d *Device) CreateTexture2DRGBA8(pixels []byte, width, height, rowStride uint32) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	row := width * rgba8Bytes
	if rowStride == 0 {
		rowStride = row
	}
	if rowStride < row {
		return nil, fmt.Errorf("%w: row stride %d shorter than row %d", ErrInvalidDimensions, rowStride, row)
	}
	if need := uint64(rowStride)*uint64(height-1) + uint64(row); uint64(len(pixels)) < need {
		return nil, fmt.Errorf("%w: %d bytes of pixels, need %d", ErrInvalidSize, len(pixels), need)
	}
	if err := d.checkLive(); err != nil {
		return nil, err
	}

	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         "texture_rgba8",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("device: create texture: %w", err)
	}
	tex := &Texture{
		raw:    raw,
		width:  width,
		height: height,
		format: gputypes.TextureFormatRGBA8Unorm,
		state:  StateCommon,
		label:  "texture_rgba8",
	}

	if err := d.uploadTexture(tex, pixels, rowStride); err != nil {
		d.raw.DestroyTexture(raw)
		return nil, err
	}

	d.logger.Debug("texture created", "width", width, "height", height)
	return tex, nil
}

func (d *Device) uploadTexture(tex *Texture, pixels []byte, rowStride uint32) error {
	fp := d.Footprint(tex.width, tex.height)

	if err := d.BeginUpload(); err != nil {
		return err
	}
	staging, err := d.stage(tex.label, fp.Size, func(dst []byte) {
		for y := uint32(0); y < fp.Rows; y++ {
			src := pixels[uint64(y)*uint64(rowStride):]
			off := uint64(y) * uint64(fp.RowPitch)
			n := copy(dst[off:off+uint64(fp.RowBytes)], src[:fp.RowBytes])
			clear(dst[off+uint64(n) : off+uint64(fp.RowPitch)])
		}
	})
	if err != nil {
		d.AbortUpload()
		return err
	}

	enc := d.upload.encoder
	RecordTransition(enc, tex, StateCopyDest)
	enc.CopyBufferToTexture(staging, tex.raw, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			BytesPerRow:  fp.RowPitch,
			RowsPerImage: fp.Rows,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture: tex.raw,
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: tex.width, Height: tex.height, DepthOrArrayLayers: 1},
	}})
	RecordTransition(enc, tex, StatePixelShaderResource)

	return d.EndUpload()
}
