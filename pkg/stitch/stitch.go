package stitch

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/errors"
)

// Image is a stitched full-page bitmap.
type Image struct {
	Pix    *image.RGBA
	Width  int
	Height int

	// DevicePixelRatio is the measured ratio of captured pixels to page
	// coordinates (first tile height / client height).
	DevicePixelRatio float64
}

// Stitch composes tiles into one image covering geom's full scroll height.
//
// Tiles must be in capture order. Every tile is released, including when
// Stitch fails.
func Stitch(geom capture.PageGeometry, tiles []capture.Tile) (*Image, error) {
	defer func() {
		for i := range tiles {
			tiles[i].Release()
		}
	}()

	if len(tiles) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "no tiles to stitch")
	}
	if err := geom.ValidateFullPage(); err != nil {
		return nil, err
	}
	first := tiles[0].Bitmap
	if first == nil || first.Bounds().Dy() == 0 || first.Bounds().Dx() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "first tile has zero size")
	}

	scale := float64(first.Bounds().Dy()) / float64(geom.ClientHeight)
	width := first.Bounds().Dx()
	height := CanvasHeight(geom.ScrollHeight, scale)
	if float64(width)*float64(height) > capture.MaxCanvasPixels {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "canvas %dx%d exceeds %d pixels", width, height, capture.MaxCanvasPixels)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i := range tiles {
		bmp := tiles[i].Bitmap
		if bmp == nil {
			return nil, errors.New(errors.ErrCodeInvalidGeometry, "tile %d has no bitmap", i)
		}
		b := bmp.Bounds()
		y := int(math.Round(float64(tiles[i].Position.Y) * scale))
		dst := image.Rect(0, y, b.Dx(), y+b.Dy())
		draw.Draw(canvas, dst, bmp, b.Min, draw.Over)
		tiles[i].Release()
	}

	return &Image{
		Pix:              canvas,
		Width:            width,
		Height:           height,
		DevicePixelRatio: scale,
	}, nil
}

// CanvasHeight returns ceil(scrollHeight * scale).
func CanvasHeight(scrollHeight int, scale float64) int {
	return int(math.Ceil(float64(scrollHeight) * scale))
}
