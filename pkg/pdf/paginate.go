package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// JPEGQuality is the encoder quality for page bands.
const JPEGQuality = 92

// Page is one paginated band of the source image.
type Page struct {
	JPEG         []byte
	WidthPx      int
	HeightPx     int
	DrawWidthPt  float64
	DrawHeightPt float64
}

// Paginate slices img top to bottom into bands that fill one page each at
// full page width. Band k covers rows [floor(k*slice), floor((k+1)*slice))
// clipped to the image, so every row lands on exactly one page. A band one
// row taller than the slice is drawn squeezed to the page height.
func Paginate(img image.Image, size PageSize) ([]Page, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New(errors.ErrCodeInvalidPageSize, "no image to paginate")
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidPageSize, "image width must be positive, got %d", width)
	}
	if height <= 0 {
		return nil, errors.New(errors.ErrCodeEmptyDocument, "image has no rows")
	}

	scale := size.Width / float64(width)
	slice := size.Height / scale

	var pages []Page
	for k := 0; float64(k)*slice < float64(height); k++ {
		top := int(math.Floor(float64(k) * slice))
		bottom := min(int(math.Floor(float64(k+1)*slice)), height)
		if bottom <= top {
			continue
		}
		data, err := encodeBand(img, b.Min.Y+top, bottom-top)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncodingFailure, err, "encode page %d", len(pages)+1)
		}
		pages = append(pages, Page{
			JPEG:         data,
			WidthPx:      width,
			HeightPx:     bottom - top,
			DrawWidthPt:  size.Width,
			DrawHeightPt: min(float64(bottom-top)*scale, size.Height),
		})
	}
	return pages, nil
}

func encodeBand(img image.Image, offsetY, rows int) ([]byte, error) {
	b := img.Bounds()
	band := image.NewRGBA(image.Rect(0, 0, b.Dx(), rows))
	draw.Draw(band, band.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(band, band.Bounds(), img, image.Pt(b.Min.X, offsetY), draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, band, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEncodingFailure, "jpeg encoder produced no data")
	}
	return buf.Bytes(), nil
}
