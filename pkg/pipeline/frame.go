package pipeline

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/clock"
)

// FrameOptions describes the simulated viewport used by CapturePage.
type FrameOptions struct {
	// ViewportWidth is in CSS pixels. Zero fits the page width.
	ViewportWidth int

	// ViewportHeight is in CSS pixels and must be positive.
	ViewportHeight int

	// DevicePixelRatio of the page bitmap. Zero means 1.
	DevicePixelRatio float64

	// SettleDelay between scroll and capture. Zero selects
	// capture.DefaultSettleDelay.
	SettleDelay time.Duration

	Clock clock.Clock
}

// CapturePage captures an already-rendered page bitmap through a simulated
// browser viewport (capture.PageFrame) and stitches the result.
func (r *Runner) CapturePage(ctx context.Context, page image.Image, mode capture.Mode, fo FrameOptions) (*Capture, error) {
	dpr := fo.DevicePixelRatio
	if dpr == 0 {
		dpr = 1
	}
	if err := capture.ValidateDevicePixelRatio(dpr); err != nil {
		return nil, err
	}
	width := fo.ViewportWidth
	if width == 0 && page != nil {
		width = int(math.Ceil(float64(page.Bounds().Dx()) / dpr))
	}

	frame, err := capture.NewPageFrame(page, width, fo.ViewportHeight, dpr)
	if err != nil {
		return nil, err
	}

	opts := []capture.Option{capture.WithLogger(r.Logger)}
	if fo.SettleDelay > 0 {
		opts = append(opts, capture.WithSettleDelay(fo.SettleDelay))
	}
	if fo.Clock != nil {
		opts = append(opts, capture.WithClock(fo.Clock))
	}
	return r.Capture(ctx, capture.NewCapturer(frame, frame, opts...), mode)
}
