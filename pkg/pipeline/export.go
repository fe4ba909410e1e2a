package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/observability"
	"github.com/matzehuels/pageshot/pkg/pdf"
	"github.com/matzehuels/pageshot/pkg/raster"
)

// Encode renders src in the requested format without touching the cache.
func Encode(src *raster.Source, opts Options) ([]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if src == nil || src.Image == nil {
		return nil, errors.New(errors.ErrCodeInvalidImage, "no image to export")
	}
	switch opts.Format {
	case FormatPDF:
		size, err := pdf.LookupPageSize(opts.PageSize)
		if err != nil {
			return nil, err
		}
		return pdf.Render(src.Image, size)
	default:
		format, err := raster.ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		return raster.Encode(src, format, opts.Quality)
	}
}

// Export encodes src with caching and reports whether the result came from
// the cache.
func (r *Runner) Export(ctx context.Context, src *raster.Source, opts Options) (_ []byte, hit bool, err error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	if src == nil || src.Image == nil {
		return nil, false, errors.New(errors.ErrCodeInvalidImage, "no image to export")
	}

	start := time.Now()
	size := 0
	observability.Pipeline().OnExportStart(ctx, opts.Format)
	defer func() {
		observability.Pipeline().OnExportComplete(ctx, opts.Format, size, time.Since(start), err)
	}()

	key := r.Keyer.ExportKey(SourceHash(src), opts.ExportKeyOpts())
	if !opts.Refresh {
		if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			observability.Cache().OnCacheHit(ctx, "export")
			size = len(data)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "export")
	}

	data, err := Encode(src, opts)
	if err != nil {
		return nil, false, err
	}
	size = len(data)

	if err := r.Cache.Set(ctx, key, data, cache.TTLExport); err != nil {
		r.Logger.Warn("cache write failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "export", len(data))
	}

	r.Logger.Info("exported capture",
		"format", opts.Format,
		"bytes", len(data),
		"duration", time.Since(start))
	return data, false, nil
}

// Preview returns a PNG thumbnail of src bounded by maxWidth × maxHeight.
func (r *Runner) Preview(ctx context.Context, src *raster.Source, maxWidth, maxHeight int) ([]byte, bool, error) {
	if src == nil || src.Image == nil {
		return nil, false, errors.New(errors.ErrCodeInvalidImage, "no image to preview")
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "preview size must be positive, got %dx%d", maxWidth, maxHeight)
	}

	key := r.Keyer.PreviewKey(SourceHash(src), maxWidth, maxHeight)
	if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "preview")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "preview")

	data, err := raster.EncodePNG(raster.Thumbnail(src.Image, maxWidth, maxHeight))
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLPreview); err == nil {
		observability.Cache().OnCacheSet(ctx, "preview", len(data))
	}
	return data, false, nil
}

// Job is one export in a batch.
type Job struct {
	Name    string
	Source  *raster.Source
	Options Options
}

// JobResult is the output of one batch job, in job order.
type JobResult struct {
	Name     string
	Artifact []byte
	MIME     string
	CacheHit bool
}

// ExportBatch exports independent sources concurrently with at most limit
// exports in flight. Every job's options are validated before any export
// starts. The first failure cancels the remaining jobs.
func (r *Runner) ExportBatch(ctx context.Context, jobs []Job, limit int) ([]JobResult, error) {
	if limit <= 0 {
		limit = 1
	}
	opts := make([]Options, len(jobs))
	for i, job := range jobs {
		opts[i] = job.Options
		if err := opts[i].ValidateAndSetDefaults(); err != nil {
			return nil, fmt.Errorf("export %s: %w", job.Name, err)
		}
	}
	results := make([]JobResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, hit, err := r.Export(ctx, job.Source, opts[i])
			if err != nil {
				return fmt.Errorf("export %s: %w", job.Name, err)
			}
			results[i] = JobResult{Name: job.Name, Artifact: data, MIME: opts[i].MIME(), CacheHit: hit}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SourceHash identifies a source's content. Encoded sources hash their
// bytes; bare bitmaps hash their dimensions and RGBA pixels.
func SourceHash(src *raster.Source) string {
	if len(src.Encoded) > 0 {
		return cache.Hash(src.Encoded)
	}
	b := src.Image.Bounds()
	n := 4 * b.Dx() * b.Dy()
	rgba, ok := src.Image.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() || len(rgba.Pix) < n {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src.Image, b.Min, draw.Src)
	}
	buf := make([]byte, 8, 8+n)
	binary.BigEndian.PutUint32(buf[0:], uint32(b.Dx()))
	binary.BigEndian.PutUint32(buf[4:], uint32(b.Dy()))
	return cache.Hash(append(buf, rgba.Pix[:n]...))
}
