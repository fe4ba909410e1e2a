package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pageshot/pkg/clock"
	"github.com/matzehuels/pageshot/pkg/errors"
)

// DefaultSettleDelay is how long the page is left to render after each
// scroll before the tile is grabbed.
const DefaultSettleDelay = 250 * time.Millisecond

// Viewport measures and scrolls the page being captured.
type Viewport interface {
	// Geometry measures the page and the current scroll position.
	Geometry(ctx context.Context) (PageGeometry, error)

	// ScrollTo scrolls the page and returns the position actually reached,
	// which may be clamped near the end of the page.
	ScrollTo(ctx context.Context, x, y int) (Position, error)
}

// TileSource grabs the currently visible viewport as a bitmap.
type TileSource interface {
	CaptureTile(ctx context.Context) (image.Image, error)
}

// State is a step of the capture state machine.
type State int

// Capture states.
const (
	StateIdle State = iota
	StateScrolling
	StateSettling
	StateCapturing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateScrolling: "scrolling",
	StateSettling:  "settling",
	StateCapturing: "capturing",
	StateDone:      "done",
	StateFailed:    "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Capturer) { c.settle = d }
}

// WithClock sets the clock used for settle waits (default: clock.Real).
func WithClock(clk clock.Clock) Option {
	return func(c *Capturer) { c.clock = clk }
}

// WithLogger sets the logger for per-tile debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(from, to State)) Option {
	return func(c *Capturer) { c.observer = fn }
}

// Capturer drives the scroll → settle → capture sequence for one page.
// A Capturer runs one capture at a time; concurrent calls fail.
type Capturer struct {
	viewport Viewport
	source   TileSource
	settle   time.Duration
	clock    clock.Clock
	logger   *log.Logger
	observer func(from, to State)

	mu      sync.Mutex
	state   State
	running bool
}

// NewCapturer creates a capturer over the given viewport and tile source.
func NewCapturer(v Viewport, src TileSource, opts ...Option) *Capturer {
	c := &Capturer{
		viewport: v,
		source:   src,
		settle:   DefaultSettleDelay,
		clock:    clock.Real{},
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Capturer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CaptureFullPage captures the whole scrollable page as a sequence of tiles.
//
// The original scroll position is restored before returning, on success and
// on failure. On failure every tile captured so far is released and
// discarded.
func (c *Capturer) CaptureFullPage(ctx context.Context) (res *Result, err error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	geom, err := c.viewport.Geometry(ctx)
	if err != nil {
		c.transition(StateFailed)
		c.end()
		return nil, errors.Wrap(errors.ErrCodeCaptureFailed, err, "measure page")
	}
	if err := geom.ValidateFullPage(); err != nil {
		c.transition(StateFailed)
		c.end()
		return nil, err
	}

	offsets := geom.TileOffsets()
	tiles := make([]Tile, 0, len(offsets))

	defer func() {
		if rerr := c.restore(ctx, geom); rerr != nil && err == nil {
			err = rerr
		}
		if err != nil {
			for i := range tiles {
				tiles[i].Release()
			}
			res = nil
			c.transition(StateFailed)
		} else {
			c.transition(StateDone)
		}
		c.end()
	}()

	c.logger.Debug("capturing page",
		"page", fmt.Sprintf("%dx%d", geom.ScrollWidth, geom.ScrollHeight),
		"viewport", fmt.Sprintf("%dx%d", geom.ClientWidth, geom.ClientHeight),
		"tiles", len(offsets))

	for i, y := range offsets {
		tile, err := c.captureAt(ctx, y)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCaptureFailed, err, "tile %d of %d", i+1, len(offsets))
		}
		tiles = append(tiles, tile)
		c.logger.Debug("captured tile", "index", i, "y", tile.Position.Y, "height", tile.Height())
	}

	return &Result{Mode: ModeFullPage, Geometry: geom, Tiles: tiles}, nil
}

// CaptureViewport captures the visible viewport without scrolling.
// The returned geometry describes the viewport alone, with the tile at the
// origin.
func (c *Capturer) CaptureViewport(ctx context.Context) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	geom, err := c.viewport.Geometry(ctx)
	if err != nil {
		c.transition(StateFailed)
		return nil, errors.Wrap(errors.ErrCodeCaptureFailed, err, "measure page")
	}
	if err := geom.Validate(); err != nil {
		c.transition(StateFailed)
		return nil, err
	}

	c.transition(StateCapturing)
	bmp, err := c.grab(ctx)
	if err != nil {
		c.transition(StateFailed)
		return nil, errors.Wrap(errors.ErrCodeCaptureFailed, err, "capture viewport")
	}
	c.transition(StateDone)

	return &Result{
		Mode:     ModeViewport,
		Geometry: geom.Viewport(),
		Tiles:    []Tile{{Bitmap: bmp}},
	}, nil
}

// captureAt runs one scroll → settle → capture step.
func (c *Capturer) captureAt(ctx context.Context, y int) (Tile, error) {
	if err := ctx.Err(); err != nil {
		return Tile{}, err
	}

	c.transition(StateScrolling)
	pos, err := c.viewport.ScrollTo(ctx, 0, y)
	if err != nil {
		return Tile{}, fmt.Errorf("scroll to %d: %w", y, err)
	}

	c.transition(StateSettling)
	if err := c.clock.Sleep(ctx, c.settle); err != nil {
		return Tile{}, err
	}

	c.transition(StateCapturing)
	bmp, err := c.grab(ctx)
	if err != nil {
		return Tile{}, err
	}
	return Tile{Bitmap: bmp, Position: pos}, nil
}

func (c *Capturer) grab(ctx context.Context) (image.Image, error) {
	bmp, err := c.source.CaptureTile(ctx)
	if err != nil {
		return nil, err
	}
	if bmp == nil || bmp.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeInvalidGeometry, "tile source returned an empty bitmap")
	}
	return bmp, nil
}

// restore scrolls back to where the page was before capture. It ignores
// cancellation of ctx so that a cancelled capture still leaves the page
// where it found it.
func (c *Capturer) restore(ctx context.Context, geom PageGeometry) error {
	if _, err := c.viewport.ScrollTo(context.WithoutCancel(ctx), geom.ScrollX, geom.ScrollY); err != nil {
		c.logger.Warn("restore scroll position failed", "x", geom.ScrollX, "y", geom.ScrollY, "err", err)
		return errors.Wrap(errors.ErrCodeCaptureFailed, err, "restore scroll position")
	}
	return nil
}

func (c *Capturer) begin() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New(errors.ErrCodeCaptureFailed, "capture already in progress")
	}
	c.running = true
	c.mu.Unlock()
	c.transition(StateIdle)
	return nil
}

func (c *Capturer) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// transition moves to the given state and notifies the observer outside the
// lock, so the observer may call State.
func (c *Capturer) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if c.observer != nil && from != to {
		c.observer(from, to)
	}
}
