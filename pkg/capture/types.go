package capture

import (
	"image"
	"math"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// Mode identifies how a capture was taken.
type Mode string

// Capture modes.
const (
	// ModeViewport captures only the visible viewport.
	ModeViewport Mode = "viewport"

	// ModeFullPage captures the whole scrollable height as stitched tiles.
	ModeFullPage Mode = "fullpage"
)

// ParseMode validates a capture mode string. Empty means viewport.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeViewport:
		return ModeViewport, nil
	case ModeFullPage:
		return ModeFullPage, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "invalid capture mode: %q (must be viewport or fullpage)", s)
}

// Position is a point in page (CSS pixel) coordinates.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Tile is one captured viewport bitmap and the scroll position it was taken at.
//
// The bitmap is in physical (device) pixels while the position is in page
// coordinates. Ownership of the bitmap passes to whoever composes the tiles.
type Tile struct {
	Bitmap   image.Image
	Position Position
}

// Release drops the tile's pixel buffer.
func (t *Tile) Release() {
	t.Bitmap = nil
}

// Height returns the bitmap height in pixels, or 0 if released.
func (t *Tile) Height() int {
	if t.Bitmap == nil {
		return 0
	}
	return t.Bitmap.Bounds().Dy()
}

// Bounds on a capture. A browser never reports a device pixel ratio outside
// the DPR range, and the tile and canvas limits keep a single capture from
// exhausting memory.
const (
	MinDevicePixelRatio = 0.25
	MaxDevicePixelRatio = 8

	// MaxTiles is the most viewports a full-page capture may scroll through.
	MaxTiles = 1000

	// MaxCanvasPixels bounds the stitched page in device pixels (512 MiB as RGBA).
	MaxCanvasPixels = 1 << 27
)

// ValidateDevicePixelRatio checks that dpr is finite and within
// [MinDevicePixelRatio, MaxDevicePixelRatio].
func ValidateDevicePixelRatio(dpr float64) error {
	if math.IsNaN(dpr) || dpr < MinDevicePixelRatio || dpr > MaxDevicePixelRatio {
		return errors.New(errors.ErrCodeInvalidGeometry, "device pixel ratio must be between %v and %v, got %v",
			MinDevicePixelRatio, MaxDevicePixelRatio, dpr)
	}
	return nil
}

// PageGeometry is the measured layout of a page, taken once before tiling.
type PageGeometry struct {
	ScrollWidth      int     `json:"scroll_width"`
	ScrollHeight     int     `json:"scroll_height"`
	ClientWidth      int     `json:"client_width"`
	ClientHeight     int     `json:"client_height"`
	ScrollX          int     `json:"scroll_x"`
	ScrollY          int     `json:"scroll_y"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

// Validate checks that the geometry can be tiled. A zero DevicePixelRatio
// means unknown and counts as 1.
func (g PageGeometry) Validate() error {
	dpr := g.DevicePixelRatio
	if dpr == 0 {
		dpr = 1
	}
	switch {
	case g.ClientWidth <= 0 || g.ClientHeight <= 0:
		return errors.New(errors.ErrCodeInvalidGeometry, "viewport must be positive, got %dx%d", g.ClientWidth, g.ClientHeight)
	case g.ScrollWidth <= 0 || g.ScrollHeight <= 0:
		return errors.New(errors.ErrCodeInvalidGeometry, "page must be positive, got %dx%d", g.ScrollWidth, g.ScrollHeight)
	case g.ScrollX < 0 || g.ScrollY < 0:
		return errors.New(errors.ErrCodeInvalidGeometry, "scroll offset must be non-negative, got (%d, %d)", g.ScrollX, g.ScrollY)
	}
	return ValidateDevicePixelRatio(dpr)
}

// ValidateFullPage is Validate plus the [MaxTiles] and [MaxCanvasPixels]
// limits of a full-page capture.
func (g PageGeometry) ValidateFullPage() error {
	if err := g.Validate(); err != nil {
		return err
	}
	dpr := g.DevicePixelRatio
	if dpr == 0 {
		dpr = 1
	}
	if n := (g.ScrollHeight + g.ClientHeight - 1) / g.ClientHeight; n > MaxTiles {
		return errors.New(errors.ErrCodeInvalidGeometry, "page of height %d needs %d tiles of height %d, limit is %d",
			g.ScrollHeight, n, g.ClientHeight, MaxTiles)
	}
	if px := float64(g.ScrollWidth) * float64(g.ScrollHeight) * dpr * dpr; px > MaxCanvasPixels {
		return errors.New(errors.ErrCodeInvalidGeometry, "page of %dx%d at %vx exceeds %d device pixels",
			g.ScrollWidth, g.ScrollHeight, dpr, MaxCanvasPixels)
	}
	return nil
}

// TileOffsets returns the vertical scroll offset of every tile.
// Offsets step from 0 by ClientHeight while below ScrollHeight, so the
// last tile may extend past the end of the page.
func (g PageGeometry) TileOffsets() []int {
	if g.ClientHeight <= 0 || g.ScrollHeight <= 0 {
		return nil
	}
	offsets := make([]int, 0, min((g.ScrollHeight+g.ClientHeight-1)/g.ClientHeight, MaxTiles))
	for y := 0; y < g.ScrollHeight; y += g.ClientHeight {
		offsets = append(offsets, y)
	}
	return offsets
}

// Viewport returns the geometry of the visible area alone, as used for a
// viewport-mode capture that is not scrolled.
func (g PageGeometry) Viewport() PageGeometry {
	return PageGeometry{
		ScrollWidth:      g.ClientWidth,
		ScrollHeight:     g.ClientHeight,
		ClientWidth:      g.ClientWidth,
		ClientHeight:     g.ClientHeight,
		DevicePixelRatio: g.DevicePixelRatio,
	}
}

// Result is the output of a capture: the geometry and tiles in capture order.
type Result struct {
	Mode     Mode
	Geometry PageGeometry
	Tiles    []Tile
}

// Release drops every tile's pixel buffer.
func (r *Result) Release() {
	for i := range r.Tiles {
		r.Tiles[i].Release()
	}
}
