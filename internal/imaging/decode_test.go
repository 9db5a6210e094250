package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/hpungsan/snaplabel/internal/errors"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

// withEXIFOrientation inserts a minimal APP1 EXIF segment carrying the
// Orientation tag right after the JPEG SOI marker.
func withEXIFOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Fatal("not a JPEG")
	}

	var tiff bytes.Buffer
	tiff.WriteString("II*\x00")
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8)) // IFD0 offset
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(1)) // entry count
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(3)) // SHORT
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(1))
	_ = binary.Write(&tiff, binary.LittleEndian, orientation)
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0)) // padding
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0)) // next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.SetRGBA(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	d, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if d.Format != "png" {
		t.Errorf("Format = %q, want png", d.Format)
	}
	if d.Width() != 4 || d.Height() != 3 {
		t.Errorf("size = %dx%d, want 4x3", d.Width(), d.Height())
	}
	if d.Orientation != 1 {
		t.Errorf("Orientation = %d, want 1", d.Orientation)
	}
	if got := d.Image.RGBAAt(1, 2); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("pixel = %v", got)
	}
}

func TestDecode_GrayBecomesRGB(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.SetGray(0, 0, color.Gray{Y: 200})

	d, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got := d.Image.RGBAAt(0, 0)
	if got.R != 200 || got.G != 200 || got.B != 200 || got.A != 255 {
		t.Errorf("pixel = %v, want gray 200 opaque", got)
	}
}

func TestDecode_AlphaIsDropped(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 128, B: 0, A: 0})

	d, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got := d.Image.RGBAAt(0, 0)
	if got.A != 255 {
		t.Errorf("alpha = %d, want 255", got.A)
	}
	if got.R != 255 || got.G != 128 || got.B != 0 {
		t.Errorf("colour = %v, want channels kept", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 8, 8)))

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"random bytes", []byte("definitely not an image")},
		{"truncated png", valid[:len(valid)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Decode() = %+v, want error", d)
			}
			if !errors.Is(err, errors.ErrDecode) {
				t.Errorf("error = %v, want DECODE_ERROR", err)
			}
		})
	}
}

func TestDecode_EXIFRotation(t *testing.T) {
	// 4 wide, 2 tall; orientation 6 means rotate 90 degrees clockwise.
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	data := withEXIFOrientation(t, encodeJPEG(t, src), 6)
	d, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if d.Orientation != 6 {
		t.Fatalf("Orientation = %d, want 6", d.Orientation)
	}
	if d.Width() != 2 || d.Height() != 4 {
		t.Errorf("size = %dx%d, want 2x4", d.Width(), d.Height())
	}
}

func TestApplyOrientation(t *testing.T) {
	// 2x1 image: red at (0,0), blue at (1,0).
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	tests := []struct {
		orientation int
		w, h        int
		redAt       image.Point
		blueAt      image.Point
	}{
		{1, 2, 1, image.Pt(0, 0), image.Pt(1, 0)},
		{2, 2, 1, image.Pt(1, 0), image.Pt(0, 0)},
		{3, 2, 1, image.Pt(1, 0), image.Pt(0, 0)},
		{4, 2, 1, image.Pt(0, 0), image.Pt(1, 0)},
		{5, 1, 2, image.Pt(0, 0), image.Pt(0, 1)},
		{6, 1, 2, image.Pt(0, 0), image.Pt(0, 1)},
		{7, 1, 2, image.Pt(0, 1), image.Pt(0, 0)},
		{8, 1, 2, image.Pt(0, 1), image.Pt(0, 0)},
	}

	for _, tt := range tests {
		got := applyOrientation(src, tt.orientation)
		b := got.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("orientation %d: size = %dx%d, want %dx%d", tt.orientation, b.Dx(), b.Dy(), tt.w, tt.h)
			continue
		}
		if got.RGBAAt(tt.redAt.X, tt.redAt.Y) != red {
			t.Errorf("orientation %d: red not at %v", tt.orientation, tt.redAt)
		}
		if got.RGBAAt(tt.blueAt.X, tt.blueAt.Y) != blue {
			t.Errorf("orientation %d: blue not at %v", tt.orientation, tt.blueAt)
		}
	}
}

func TestApplyOrientation_Quadrants(t *testing.T) {
	// 2x2 image, rows top to bottom: [R G] [B W].
	r := color.RGBA{R: 255, A: 255}
	g := color.RGBA{G: 255, A: 255}
	bl := color.RGBA{B: 255, A: 255}
	w := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, r)
	src.SetRGBA(1, 0, g)
	src.SetRGBA(0, 1, bl)
	src.SetRGBA(1, 1, w)

	tests := []struct {
		orientation int
		want        [2][2]color.RGBA
	}{
		{1, [2][2]color.RGBA{{r, g}, {bl, w}}},
		{2, [2][2]color.RGBA{{g, r}, {w, bl}}},
		{3, [2][2]color.RGBA{{w, bl}, {g, r}}},
		{4, [2][2]color.RGBA{{bl, w}, {r, g}}},
		{5, [2][2]color.RGBA{{r, bl}, {g, w}}},
		{6, [2][2]color.RGBA{{bl, r}, {w, g}}},
		{7, [2][2]color.RGBA{{w, g}, {bl, r}}},
		{8, [2][2]color.RGBA{{g, w}, {r, bl}}},
	}

	for _, tt := range tests {
		got := applyOrientation(src, tt.orientation)
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				if c := got.RGBAAt(x, y); c != tt.want[y][x] {
					t.Errorf("orientation %d: (%d,%d) = %v, want %v", tt.orientation, x, y, c, tt.want[y][x])
				}
			}
		}
	}
}

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"cat.jpg", true},
		{"cat.JPEG", true},
		{"cat.png", true},
		{"cat.webp", true},
		{"scan.tiff", true},
		{"scan.tif", true},
		{"anim.gif", false},
		{"notes.txt", false},
		{"noext", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AllowedExtension(tt.filename); got != tt.want {
			t.Errorf("AllowedExtension(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}
