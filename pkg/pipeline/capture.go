package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/observability"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/stitch"
)

// Capture is a stitched capture ready for export.
type Capture struct {
	Source           *raster.Source
	Mode             capture.Mode
	Geometry         capture.PageGeometry
	Tiles            int
	DevicePixelRatio float64
	CaptureTime      time.Duration
	StitchTime       time.Duration
}

// Capture takes a full-page or viewport capture with c and stitches it into
// a single bitmap.
func (r *Runner) Capture(ctx context.Context, c *capture.Capturer, mode capture.Mode) (_ *Capture, err error) {
	if mode, err = capture.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	start := time.Now()
	tiles := 0
	observability.Pipeline().OnCaptureStart(ctx, string(mode))
	defer func() {
		observability.Pipeline().OnCaptureComplete(ctx, string(mode), tiles, time.Since(start), err)
	}()

	var res *capture.Result
	if mode == capture.ModeFullPage {
		res, err = c.CaptureFullPage(ctx)
	} else {
		res, err = c.CaptureViewport(ctx)
	}
	if err != nil {
		return nil, err
	}
	tiles = len(res.Tiles)
	captureTime := time.Since(start)

	stitchStart := time.Now()
	img, err := stitch.Stitch(res.Geometry, res.Tiles)
	if err != nil {
		return nil, err
	}
	stitchTime := time.Since(stitchStart)

	r.Logger.Info("captured page",
		"mode", mode,
		"tiles", tiles,
		"size", fmt.Sprintf("%dx%d", img.Width, img.Height),
		"duration", captureTime+stitchTime)

	return &Capture{
		Source:           raster.FromImage(img.Pix),
		Mode:             mode,
		Geometry:         res.Geometry,
		Tiles:            tiles,
		DevicePixelRatio: img.DevicePixelRatio,
		CaptureTime:      captureTime,
		StitchTime:       stitchTime,
	}, nil
}
