// Package pipeline provides the capture → stitch → export pipeline for
// pageshot.
//
// The CLI and the HTTP service both drive captures and exports through a
// [Runner] so that caching, logging and instrumentation behave the same
// everywhere.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Capture: scroll through the page tile by tile and stitch the tiles
//     into one bitmap
//  2. Export: encode the bitmap as PNG, JPEG or a paginated PDF
//
// Exports are cached by a hash of the source image and the export options.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.Execute(ctx, capturer, capture.ModeFullPage, pipeline.Options{
//	    Format: pipeline.FormatPDF,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("page.pdf", res.Artifact, 0644)
//
// Run individual stages:
//
//	c, err := runner.Capture(ctx, capturer, capture.ModeFullPage)
//	data, hit, err := runner.Export(ctx, c.Source, opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/pdf"
	"github.com/matzehuels/pageshot/pkg/raster"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultFormat is the default export format.
	DefaultFormat = FormatPNG

	// DefaultQuality is the default JPEG quality on a 0–100 scale.
	DefaultQuality = 92

	// DefaultPageSize is the default PDF page size.
	DefaultPageSize = "a4"

	// DefaultPreviewSize bounds both sides of a preview thumbnail.
	DefaultPreviewSize = 320
)

// Format constants for export formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpg"
	FormatPDF  = "pdf"
)

// MIMEPDF is the MIME type of PDF exports.
const MIMEPDF = "application/pdf"

// ValidFormats is the set of supported export formats.
var ValidFormats = map[string]bool{
	FormatPNG:  true,
	FormatJPEG: true,
	FormatPDF:  true,
}

// =============================================================================
// Options - Export Configuration
// =============================================================================

// Options configures an export. It supports JSON for API requests.
type Options struct {
	Format string `json:"format,omitempty"`

	// Quality applies to jpg. Zero selects DefaultQuality.
	Quality int `json:"quality,omitempty"`

	// PageSize applies to pdf: "a4" or "letter".
	PageSize string `json:"page_size,omitempty"`

	// Refresh bypasses the cache read (the result is still written).
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Capture is the stitched capture.
	Capture *Capture

	// Artifact is the encoded export.
	Artifact []byte

	// MIME is the artifact's MIME type.
	MIME string

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether the artifact came from the cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Tiles       int
	Width       int
	Height      int
	Bytes       int
	CaptureTime time.Duration
	StitchTime  time.Duration
	ExportTime  time.Duration
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeUnsupportedFormat, "invalid format: %q (must be one of: png, jpg, pdf)", format)
	}
	return nil
}

// ValidateAndSetDefaults checks options and applies defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if err := errors.ValidateQuality(o.Quality); err != nil {
		return err
	}
	if o.PageSize == "" {
		o.PageSize = DefaultPageSize
	}
	if _, err := pdf.LookupPageSize(o.PageSize); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// MIME returns the MIME type of the export.
func (o *Options) MIME() string {
	switch o.Format {
	case FormatPDF:
		return MIMEPDF
	case FormatJPEG:
		return raster.MIMEJPEG
	}
	return raster.MIMEPNG
}

// ExportKeyOpts returns cache key options. Settings that do not affect the
// output for the chosen format are left out so they do not split the cache.
func (o *Options) ExportKeyOpts() cache.ExportKeyOpts {
	k := cache.ExportKeyOpts{Format: o.Format}
	switch o.Format {
	case FormatJPEG:
		k.Quality = o.Quality
	case FormatPDF:
		k.PageSize = o.PageSize
	}
	return k
}
