package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/matzehuels/pageshot/pkg/errors"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"jpg", FormatJPEG, false},
		{"jpeg", "", true},
		{"webp", "", true},
		{"PNG", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
					t.Errorf("ParseFormat(%q) error = %v, want UNSUPPORTED_FORMAT", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFormatMIME(t *testing.T) {
	if got := FormatPNG.MIME(); got != MIMEPNG {
		t.Errorf("FormatPNG.MIME() = %q, want %q", got, MIMEPNG)
	}
	if got := FormatJPEG.MIME(); got != MIMEJPEG {
		t.Errorf("FormatJPEG.MIME() = %q, want %q", got, MIMEJPEG)
	}
}

func TestLoad(t *testing.T) {
	data := pngBytes(t, solid(7, 3, color.Black))
	src, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := src.Bounds(); b.Dx() != 7 || b.Dy() != 3 {
		t.Errorf("bounds = %v, want 7x3", b)
	}
	if src.MIME != MIMEPNG {
		t.Errorf("MIME = %q, want %q", src.MIME, MIMEPNG)
	}

	if _, err := Load(nil); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("Load(nil) error = %v, want INVALID_IMAGE", err)
	}
	if _, err := Load([]byte("not an image")); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("Load(garbage) error = %v, want INVALID_IMAGE", err)
	}
}

func TestEncodePNGPassThrough(t *testing.T) {
	data := pngBytes(t, solid(4, 4, color.RGBA{R: 200, A: 255}))
	src, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := Encode(src, FormatPNG, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("PNG source was re-encoded, want original bytes")
	}
}

func TestEncodePNGFromBitmap(t *testing.T) {
	out, err := Encode(FromImage(solid(5, 2, color.White)), FormatPNG, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 5x2", b)
	}
}

func TestEncodeJPEG(t *testing.T) {
	src := FromImage(solid(16, 16, color.RGBA{R: 37, G: 99, B: 235, A: 255}))
	for _, q := range []int{0, 50, 92, 100} {
		out, err := Encode(src, FormatJPEG, q)
		if err != nil {
			t.Fatalf("Encode(q=%d): %v", q, err)
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("jpeg.DecodeConfig(q=%d): %v", q, err)
		}
		if cfg.Width != 16 || cfg.Height != 16 {
			t.Errorf("q=%d: size = %dx%d, want 16x16", q, cfg.Width, cfg.Height)
		}
	}
}

func TestEncodeJPEGQualityRange(t *testing.T) {
	src := FromImage(solid(2, 2, color.White))
	for _, q := range []int{-1, 101} {
		if _, err := Encode(src, FormatJPEG, q); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("Encode(q=%d) error = %v, want INVALID_INPUT", q, err)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Encode(nil, FormatPNG, 0); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("Encode(nil) error = %v, want INVALID_IMAGE", err)
	}
	if _, err := Encode(FromImage(solid(1, 1, color.White)), "gif", 0); !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("Encode(gif) error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1},
		{1, 1},
		{50, 50},
		{92, 92},
		{100, 100},
	}
	for _, tt := range tests {
		if got := jpegQuality(tt.in); got != tt.want {
			t.Errorf("jpegQuality(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(1, 0, color.NRGBA{A: 255})

	flat := Flatten(img)
	r, g, b, a := flat.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("transparent pixel = %v, want white", flat.At(0, 0))
	}
	r, g, b, _ = flat.At(1, 0).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("opaque pixel = %v, want black", flat.At(1, 0))
	}

	opaque := solid(2, 2, color.Black)
	if Flatten(opaque) != image.Image(opaque) {
		t.Error("opaque RGBA should be returned unchanged")
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"tall", 800, 3200, 200, 200, 50, 200},
		{"wide", 1000, 500, 200, 200, 200, 100},
		{"small", 100, 80, 200, 200, 100, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Thumbnail(solid(tt.w, tt.h, color.White), tt.maxW, tt.maxH)
			if b := got.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("Thumbnail = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	w, h, mime, err := DecodeConfig(pngBytes(t, solid(9, 4, color.White)))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if w != 9 || h != 4 || mime != MIMEPNG {
		t.Errorf("DecodeConfig = %d, %d, %q, want 9, 4, %q", w, h, mime, MIMEPNG)
	}
	if _, _, _, err := DecodeConfig([]byte{1, 2, 3}); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("DecodeConfig(garbage) error = %v, want INVALID_IMAGE", err)
	}
}
