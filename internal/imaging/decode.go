// Package imaging turns uploaded bytes into upright RGB images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hpungsan/snaplabel/internal/errors"
)

// AllowedExtensions are the upload file extensions accepted for classification.
var AllowedExtensions = []string{"jpg", "png", "jpeg", "webp", "tiff", "tif"}

// Decoded is an upright, opaque RGB image ready for the predictor.
type Decoded struct {
	Image       *image.RGBA
	Format      string // "jpeg", "png", "webp", "tiff", "gif"
	Orientation int    // EXIF orientation that was applied (1 = none)
}

// Width returns the pixel width after orientation.
func (d *Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height returns the pixel height after orientation.
func (d *Decoded) Height() int { return d.Image.Bounds().Dy() }

// Decode parses data, applies its EXIF orientation and converts it to RGB.
// Unsupported, empty or corrupt data yields a DECODE_ERROR.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, errors.NewDecode(fmt.Errorf("empty image data"))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewDecode(err)
	}

	orientation := readOrientation(data, format)
	rgb := applyOrientation(toRGB(src), orientation)

	return &Decoded{
		Image:       rgb,
		Format:      format,
		Orientation: orientation,
	}, nil
}

// AllowedExtension reports whether filename has an accepted image extension.
func AllowedExtension(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// toRGB copies img into an RGBA buffer with every pixel fully opaque.
// Colour channels are kept as stored; alpha is discarded, not composited.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := nrgba.NRGBAAt(b.Min.X+x, b.Min.Y+y)
				dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			}
		}
		return dst
	}

	if isOpaque(img) {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
