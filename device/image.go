package device

import (
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	_ "golang.org/x/image/bmp" // BMP decoder
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder
)

// CreateTextureFromImage uploads img as an RGBA8 texture. Images that are
// not already *image.RGBA are converted first.
func (d *Device) CreateTextureFromImage(img image.Image) (*Texture, error) {
	if img == nil {
		return nil, ErrNilResource
	}
	rgba := toRGBA(img)
	b := rgba.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidDimensions)
	}
	return d.CreateTexture2DRGBA8(rgba.Pix, uint32(b.Dx()), uint32(b.Dy()), uint32(rgba.Stride))
}

// LoadTexture decodes the image file at path (PNG, JPEG, GIF, BMP, TIFF or
// WebP) and uploads it as an RGBA8 texture.
func (d *Device) LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("device: load texture: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("device: decode %s: %w", path, err)
	}
	d.logger.Debug("texture decoded", "path", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return d.CreateTextureFromImage(img)
}

// toRGBA returns img as an *image.RGBA whose origin is (0, 0).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}
