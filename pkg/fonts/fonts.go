// Package fonts provides the embedded fonts used to draw demo pages.
//
// The Go font family ships with golang.org/x/image, so no font files need
// to be installed. Parsed fonts are cached after first use.
package fonts

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Cache for parsed fonts (computed once on first access).
var (
	parseOnce sync.Once
	regular   *opentype.Font
	bold      *opentype.Font
	parseErr  error
)

func load() error {
	parseOnce.Do(func() {
		if regular, parseErr = opentype.Parse(goregular.TTF); parseErr != nil {
			return
		}
		bold, parseErr = opentype.Parse(gobold.TTF)
	})
	return parseErr
}

// Regular returns a Go Regular face at size points (72 DPI, so points
// equal pixels).
func Regular(size float64) (font.Face, error) {
	return face(false, size)
}

// Bold returns a Go Bold face at size points.
func Bold(size float64) (font.Face, error) {
	return face(true, size)
}

func face(isBold bool, size float64) (font.Face, error) {
	if err := load(); err != nil {
		return nil, err
	}
	f := regular
	if isBold {
		f = bold
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
