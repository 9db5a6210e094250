package imaging

import (
	"bytes"
	"image"

	"github.com/bep/imagemeta"
	transform "github.com/disintegration/imaging"
)

// metaFormats maps image.Decode format names to imagemeta formats.
// Formats without EXIF support in imagemeta are absent.
var metaFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"tiff": imagemeta.TIFF,
	"webp": imagemeta.WebP,
}

// readOrientation returns the EXIF Orientation tag (1..8), or 1 if absent or unreadable.
func readOrientation(data []byte, format string) int {
	mf, ok := metaFormats[format]
	if !ok {
		return 1
	}

	orientation := 1
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: mf,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return 1
	}
	return orientation
}

func orientationValue(v any) (int, bool) {
	var n int
	switch t := v.(type) {
	case uint16:
		n = int(t)
	case uint32:
		n = int(t)
	case uint8:
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case []uint16:
		if len(t) == 0 {
			return 0, false
		}
		n = int(t[0])
	default:
		return 0, false
	}
	if n < 1 || n > 8 {
		return 0, false
	}
	return n, true
}

// applyOrientation returns src transformed so that EXIF orientation o displays upright.
// src must be fully opaque, which lets the NRGBA result be reused as RGBA.
func applyOrientation(src *image.RGBA, o int) *image.RGBA {
	var n *image.NRGBA
	switch o {
	case 2:
		n = transform.FlipH(src)
	case 3:
		n = transform.Rotate180(src)
	case 4:
		n = transform.FlipV(src)
	case 5:
		n = transform.Transpose(src)
	case 6:
		n = transform.Rotate270(src)
	case 7:
		n = transform.Transverse(src)
	case 8:
		n = transform.Rotate90(src)
	default:
		return src
	}
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}
