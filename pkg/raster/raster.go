package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	// Register additional decoders for image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// Format is a raster output format.
type Format string

// Supported raster formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
)

// MIME types for the supported formats.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// ParseFormat validates a format name. Only "png" and "jpg" are accepted.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPNG, FormatJPEG:
		return Format(s), nil
	}
	return "", errors.New(errors.ErrCodeUnsupportedFormat, "unsupported image format: %q (must be png or jpg)", s)
}

// MIME returns the MIME type for the format.
func (f Format) MIME() string {
	if f == FormatJPEG {
		return MIMEJPEG
	}
	return MIMEPNG
}

// Source is a decoded bitmap plus its original encoding, if known.
type Source struct {
	Image   image.Image
	Encoded []byte
	MIME    string
}

// FromImage wraps a bitmap that has no encoded form.
func FromImage(img image.Image) *Source {
	return &Source{Image: img}
}

// Load decodes an encoded image and keeps the original bytes.
func Load(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image data is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	return &Source{Image: img, Encoded: data, MIME: http.DetectContentType(data)}, nil
}

// DecodeConfig reads the dimensions and MIME type of an encoded image
// without decoding its pixels.
func DecodeConfig(data []byte) (width, height int, mime string, err error) {
	if len(data) == 0 {
		return 0, 0, "", errors.New(errors.ErrCodeInvalidImage, "image data is empty")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image header")
	}
	return cfg.Width, cfg.Height, http.DetectContentType(data), nil
}

// Bounds returns the bitmap bounds.
func (s *Source) Bounds() image.Rectangle {
	return s.Image.Bounds()
}

// Encode serializes src in the given format. Quality (0–100) applies to
// JPEG only.
func Encode(src *Source, format Format, quality int) ([]byte, error) {
	if src == nil || src.Image == nil {
		return nil, errors.New(errors.ErrCodeInvalidImage, "no image to encode")
	}
	switch format {
	case FormatPNG:
		if src.MIME == MIMEPNG && len(src.Encoded) > 0 {
			return bytes.Clone(src.Encoded), nil
		}
		return EncodePNG(src.Image)
	case FormatJPEG:
		return EncodeJPEG(src.Image, quality)
	}
	return nil, errors.New(errors.ErrCodeUnsupportedFormat, "unsupported image format: %q (must be png or jpg)", string(format))
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodingFailure, err, "encode png")
	}
	if buf.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEncodingFailure, "png encoder produced no data")
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img at quality 0–100. Transparent areas are flattened
// onto white since JPEG has no alpha channel.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if err := errors.ValidateQuality(quality); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodingFailure, err, "encode jpeg")
	}
	if buf.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEncodingFailure, "jpeg encoder produced no data")
	}
	return buf.Bytes(), nil
}

// jpegQuality maps a 0–100 quality to the encoder's 1–100 range via the
// normalized [0, 1] scale.
func jpegQuality(quality int) int {
	q := float64(quality) / 100
	return min(max(int(math.Round(q*100)), 1), 100)
}

// Flatten returns img composited over opaque white. Opaque *image.RGBA
// inputs are returned as is.
func Flatten(img image.Image) image.Image {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Opaque() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// Thumbnail scales img down to fit within maxWidth × maxHeight, preserving
// aspect ratio. Images already within bounds are returned unscaled.
func Thumbnail(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}
