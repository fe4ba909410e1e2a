package capture

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// PageFrame simulates a browser viewport over an already-rendered page.
//
// The page bitmap is in device pixels; the frame exposes page coordinates
// in CSS pixels (device pixels divided by the device pixel ratio) and clamps
// scrolling to the page like a browser does. It implements both [Viewport]
// and [TileSource].
type PageFrame struct {
	page image.Image
	dpr  float64

	clientWidth, clientHeight int
	scrollWidth, scrollHeight int

	mu   sync.Mutex
	x, y int
}

// NewPageFrame creates a frame showing clientWidth × clientHeight CSS pixels
// of page at the given device pixel ratio (0 means 1).
func NewPageFrame(page image.Image, clientWidth, clientHeight int, dpr float64) (*PageFrame, error) {
	if page == nil || page.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeInvalidImage, "page bitmap is empty")
	}
	if clientWidth <= 0 || clientHeight <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "viewport must be positive, got %dx%d", clientWidth, clientHeight)
	}
	if dpr == 0 {
		dpr = 1
	}
	if err := ValidateDevicePixelRatio(dpr); err != nil {
		return nil, err
	}

	b := page.Bounds()
	return &PageFrame{
		page:         page,
		dpr:          dpr,
		clientWidth:  clientWidth,
		clientHeight: clientHeight,
		scrollWidth:  max(int(math.Ceil(float64(b.Dx())/dpr)), clientWidth),
		scrollHeight: max(int(math.Ceil(float64(b.Dy())/dpr)), clientHeight),
	}, nil
}

// Geometry reports the page size, viewport size and current scroll offset.
func (f *PageFrame) Geometry(ctx context.Context) (PageGeometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return PageGeometry{
		ScrollWidth:      f.scrollWidth,
		ScrollHeight:     f.scrollHeight,
		ClientWidth:      f.clientWidth,
		ClientHeight:     f.clientHeight,
		ScrollX:          f.x,
		ScrollY:          f.y,
		DevicePixelRatio: f.dpr,
	}, nil
}

// ScrollTo scrolls to (x, y), clamped to the scrollable range.
func (f *PageFrame) ScrollTo(ctx context.Context, x, y int) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x = clamp(x, 0, f.scrollWidth-f.clientWidth)
	f.y = clamp(y, 0, f.scrollHeight-f.clientHeight)
	return Position{X: f.x, Y: f.y}, nil
}

// CaptureTile copies the visible viewport into a new device-pixel bitmap.
// Any part of the viewport beyond the page bitmap is white.
func (f *PageFrame) CaptureTile(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	x, y := f.x, f.y
	f.mu.Unlock()

	w := int(math.Round(float64(f.clientWidth) * f.dpr))
	h := int(math.Round(float64(f.clientHeight) * f.dpr))
	origin := image.Pt(int(math.Round(float64(x)*f.dpr)), int(math.Round(float64(y)*f.dpr)))

	tile := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(tile, tile.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(tile, tile.Bounds(), f.page, f.page.Bounds().Min.Add(origin), draw.Over)
	return tile, nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}

var (
	_ Viewport   = (*PageFrame)(nil)
	_ TileSource = (*PageFrame)(nil)
)
