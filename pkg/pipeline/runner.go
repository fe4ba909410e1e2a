package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/capture"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs capture → stitch → export.
func (r *Runner) Execute(ctx context.Context, c *capture.Capturer, mode capture.Mode, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	shot, err := r.Capture(ctx, c, mode)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	exportStart := time.Now()
	data, hit, err := r.Export(ctx, shot.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	b := shot.Source.Bounds()
	return &Result{
		Capture:  shot,
		Artifact: data,
		MIME:     opts.MIME(),
		CacheHit: hit,
		Stats: Stats{
			Tiles:       shot.Tiles,
			Width:       b.Dx(),
			Height:      b.Dy(),
			Bytes:       len(data),
			CaptureTime: shot.CaptureTime,
			StitchTime:  shot.StitchTime,
			ExportTime:  time.Since(exportStart),
		},
	}, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
