// Package capture acquires the viewport tiles that make up a full page.
//
// # Overview
//
// A page taller than the viewport is captured as a sequence of tiles. For
// each tile the page is scrolled, left to settle for a fixed delay, and then
// the visible viewport is grabbed. The [Capturer] drives this as an explicit
// state machine:
//
//	Idle → Scrolling → Settling → Capturing → … → Done
//	                                           ↘ Failed
//
// The browser itself is not part of this package. Callers provide a
// [Viewport] (geometry and scrolling) and a [TileSource] (bitmap
// acquisition). [PageFrame] implements both over an already-rendered
// full-page bitmap, which is what the CLI and the tests use.
//
// # Ordering
//
// Tiles are captured strictly one after another. Capturing before the
// scroll settles yields torn tiles, so the settle wait is a hard step of the
// per-tile sequence and never overlaps with the next scroll. The original
// scroll position is restored after the last tile, and also when any step
// fails.
//
// # Usage
//
//	frame, err := capture.NewPageFrame(pageImage, 1280, 800, 2)
//	c := capture.NewCapturer(frame, frame, capture.WithLogger(logger))
//	result, err := c.CaptureFullPage(ctx)
//	img, err := stitch.Stitch(result.Geometry, result.Tiles)
package capture
