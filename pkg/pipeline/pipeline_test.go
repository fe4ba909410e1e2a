package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/clock"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/raster"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: uint8(y), G: uint8(y / 256), B: 0x80, A: 0xff}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func newCapturer(t *testing.T, page image.Image, clientW, clientH int) *capture.Capturer {
	t.Helper()
	frame, err := capture.NewPageFrame(page, clientW, clientH, 1)
	if err != nil {
		t.Fatalf("NewPageFrame: %v", err)
	}
	return capture.NewCapturer(frame, frame, capture.WithClock(clock.NewFake(time.Unix(0, 0))))
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(c, nil, quietLogger())
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"png", false},
		{"jpg", false},
		{"pdf", false},
		{"jpeg", true},
		{"svg", true},
		{"PNG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
			t.Errorf("ValidateFormat(%q) code = %s, want UNSUPPORTED_FORMAT", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Format != FormatPNG || opts.Quality != DefaultQuality || opts.PageSize != DefaultPageSize {
		t.Errorf("defaults = %+v", opts)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"bad format", Options{Format: "gif"}, errors.ErrCodeUnsupportedFormat},
		{"quality too high", Options{Format: "jpg", Quality: 101}, errors.ErrCodeInvalidInput},
		{"negative quality", Options{Format: "jpg", Quality: -5}, errors.ErrCodeInvalidInput},
		{"bad page size", Options{Format: "pdf", PageSize: "legal"}, errors.ErrCodeInvalidPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errors.Is(err, tt.code) {
				t.Errorf("ValidateAndSetDefaults() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestOptionsMIME(t *testing.T) {
	tests := map[string]string{
		FormatPNG:  "image/png",
		FormatJPEG: "image/jpeg",
		FormatPDF:  "application/pdf",
	}
	for format, want := range tests {
		o := Options{Format: format}
		if got := o.MIME(); got != want {
			t.Errorf("MIME(%s) = %q, want %q", format, got, want)
		}
	}
}

func TestExportKeyOpts(t *testing.T) {
	png1 := Options{Format: "png", Quality: 10, PageSize: "a4"}
	png2 := Options{Format: "png", Quality: 90, PageSize: "letter"}
	if png1.ExportKeyOpts() != png2.ExportKeyOpts() {
		t.Error("png keys should ignore quality and page size")
	}
	jpg := Options{Format: "jpg", Quality: 80, PageSize: "letter"}
	if got := jpg.ExportKeyOpts(); got.Quality != 80 || got.PageSize != "" {
		t.Errorf("jpg key opts = %+v", got)
	}
	doc := Options{Format: "pdf", Quality: 80, PageSize: "letter"}
	if got := doc.ExportKeyOpts(); got.Quality != 0 || got.PageSize != "letter" {
		t.Errorf("pdf key opts = %+v", got)
	}
}

func TestExecuteFullPage(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	page := stripes(100, 500)

	res, err := r.Execute(ctx, newCapturer(t, page, 100, 200), capture.ModeFullPage, Options{Format: FormatPDF})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.HasPrefix(res.Artifact, []byte("%PDF-1.4\n")) {
		t.Error("artifact is not a PDF")
	}
	if res.MIME != MIMEPDF || res.CacheHit {
		t.Errorf("MIME = %q, hit = %v", res.MIME, res.CacheHit)
	}
	if res.Stats.Tiles != 3 || res.Stats.Width != 100 || res.Stats.Height != 500 {
		t.Errorf("stats = %+v, want 3 tiles at 100x500", res.Stats)
	}
	if res.Stats.Bytes != len(res.Artifact) {
		t.Errorf("Stats.Bytes = %d, want %d", res.Stats.Bytes, len(res.Artifact))
	}

	// The stitched source reproduces the page.
	got := res.Capture.Source.Image
	for _, y := range []int{0, 199, 200, 450, 499} {
		if got.At(50, y) != page.At(50, y) {
			t.Errorf("row %d = %v, want %v", y, got.At(50, y), page.At(50, y))
		}
	}

	// Same pixels again hit the cache.
	_, hit, err := r.Export(ctx, res.Capture.Source, Options{Format: FormatPDF})
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second export should hit the cache")
	}
}

func TestExecuteViewport(t *testing.T) {
	r := newRunner(t)
	res, err := r.Execute(context.Background(), newCapturer(t, stripes(80, 400), 80, 150), capture.ModeViewport, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.Tiles != 1 || res.Stats.Height != 150 {
		t.Errorf("stats = %+v, want 1 tile 150 high", res.Stats)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(res.Artifact))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != 80 || cfg.Height != 150 {
		t.Errorf("png = %dx%d, want 80x150", cfg.Width, cfg.Height)
	}
}

func TestCaptureInvalidMode(t *testing.T) {
	r := newRunner(t)
	_, err := r.Capture(context.Background(), newCapturer(t, stripes(10, 10), 10, 10), capture.Mode("both"))
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Capture() error = %v, want INVALID_INPUT", err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	src := raster.FromImage(stripes(30, 40))

	data, hit, err := r.Export(ctx, src, Options{Format: FormatJPEG, Quality: 70})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if hit {
		t.Error("first export should miss")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width != 30 || cfg.Height != 40 {
		t.Errorf("jpeg = %+v, %v, want 30x40", cfg, err)
	}

	if _, hit, _ := r.Export(ctx, src, Options{Format: FormatJPEG, Quality: 70}); !hit {
		t.Error("same options should hit")
	}
	if _, hit, _ := r.Export(ctx, src, Options{Format: FormatJPEG, Quality: 71}); hit {
		t.Error("different quality should miss")
	}
	if _, hit, _ := r.Export(ctx, src, Options{Format: FormatJPEG, Quality: 70, Refresh: true}); hit {
		t.Error("refresh should bypass the cache")
	}

	if _, _, err := r.Export(ctx, nil, Options{}); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("Export(nil) error = %v, want INVALID_IMAGE", err)
	}
	if _, _, err := r.Export(ctx, src, Options{Format: "tiff"}); !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("Export(tiff) error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	src := raster.FromImage(stripes(100, 400))

	data, hit, err := r.Preview(ctx, src, 50, 100)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if hit {
		t.Error("first preview should miss")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width != 25 || cfg.Height != 100 {
		t.Errorf("preview = %+v, %v, want 25x100", cfg, err)
	}
	if _, hit, _ := r.Preview(ctx, src, 50, 100); !hit {
		t.Error("second preview should hit")
	}
	if _, _, err := r.Preview(ctx, src, 0, 50); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Preview(0) error = %v, want INVALID_INPUT", err)
	}
}

func TestExportBatch(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, quietLogger())

	jobs := []Job{
		{Name: "a", Source: raster.FromImage(stripes(20, 20)), Options: Options{Format: FormatPNG}},
		{Name: "b", Source: raster.FromImage(stripes(20, 900)), Options: Options{Format: FormatPDF, PageSize: "letter"}},
		{Name: "c", Source: raster.FromImage(stripes(20, 20)), Options: Options{Format: FormatJPEG}},
	}
	results, err := r.ExportBatch(ctx, jobs, 2)
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	wantMIME := []string{"image/png", "application/pdf", "image/jpeg"}
	for i, res := range results {
		if res.Name != jobs[i].Name || res.MIME != wantMIME[i] || len(res.Artifact) == 0 {
			t.Errorf("result %d = %s %s (%d bytes), want %s %s", i, res.Name, res.MIME, len(res.Artifact), jobs[i].Name, wantMIME[i])
		}
	}

	jobs[1].Options.Format = "gif"
	if _, err := r.ExportBatch(ctx, jobs, 2); !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("ExportBatch() error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestExportBatchInvalidOptionsRunsNothing(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	good := Job{Name: "good", Source: raster.FromImage(stripes(20, 20)), Options: Options{Format: FormatPNG}}
	bad := Job{Name: "bad", Source: raster.FromImage(stripes(20, 20)), Options: Options{Format: FormatJPEG, PageSize: "tabloid"}}

	_, err := r.ExportBatch(ctx, []Job{good, bad}, 2)
	if !errors.Is(err, errors.ErrCodeInvalidPageSize) {
		t.Fatalf("ExportBatch() error = %v, want INVALID_PAGE_SIZE", err)
	}
	if !strings.Contains(err.Error(), "export bad") {
		t.Errorf("error %q does not name the failing job", err)
	}

	// The valid job must not have run: its export is still a cache miss.
	if _, hit, err := r.Export(ctx, good.Source, good.Options); err != nil || hit {
		t.Errorf("Export(good) = hit %v, err %v; want a fresh export", hit, err)
	}
}

func TestSourceHash(t *testing.T) {
	a := raster.FromImage(stripes(10, 10))
	b := raster.FromImage(stripes(10, 10))
	if SourceHash(a) != SourceHash(b) {
		t.Error("identical pixels should hash equally")
	}
	if SourceHash(a) == SourceHash(raster.FromImage(stripes(10, 11))) {
		t.Error("different sizes should hash differently")
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			nrgba.Set(x, y, stripes(10, 10).At(x, y))
		}
	}
	if SourceHash(raster.FromImage(nrgba)) != SourceHash(a) {
		t.Error("opaque pixels should hash equally regardless of image type")
	}

	enc := &raster.Source{Image: a.Image, Encoded: []byte("png bytes")}
	if SourceHash(enc) != cache.Hash([]byte("png bytes")) {
		t.Error("encoded sources should hash their bytes")
	}
}

func TestCapturePage(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	r := newRunner(t)
	page := stripes(120, 600)

	shot, err := r.CapturePage(context.Background(), page, capture.ModeFullPage, FrameOptions{
		ViewportHeight:   100,
		DevicePixelRatio: 2,
		SettleDelay:      50 * time.Millisecond,
		Clock:            clk,
	})
	if err != nil {
		t.Fatalf("CapturePage: %v", err)
	}
	if shot.Tiles != 3 {
		t.Errorf("Tiles = %d, want 3", shot.Tiles)
	}
	if shot.DevicePixelRatio != 2 {
		t.Errorf("DevicePixelRatio = %v, want 2", shot.DevicePixelRatio)
	}
	b := shot.Source.Bounds()
	if b.Dx() != 120 || b.Dy() != 600 {
		t.Errorf("stitched = %dx%d, want 120x600", b.Dx(), b.Dy())
	}
	if got := len(clk.Sleeps()); got != 3 {
		t.Errorf("settle sleeps = %d, want 3", got)
	}
	for _, d := range clk.Sleeps() {
		if d != 50*time.Millisecond {
			t.Errorf("sleep = %v, want 50ms", d)
		}
	}
}

func TestCapturePageInvalidViewport(t *testing.T) {
	r := newRunner(t)
	_, err := r.CapturePage(context.Background(), stripes(10, 10), capture.ModeFullPage, FrameOptions{})
	if !errors.Is(err, errors.ErrCodeInvalidGeometry) {
		t.Errorf("error = %v, want INVALID_GEOMETRY", err)
	}
}

func TestCapturePageDevicePixelRatioOutOfRange(t *testing.T) {
	r := newRunner(t)
	for _, dpr := range []float64{1e-12, -1, 64} {
		_, err := r.CapturePage(context.Background(), stripes(10, 10), capture.ModeFullPage, FrameOptions{
			ViewportHeight:   10,
			DevicePixelRatio: dpr,
		})
		if !errors.Is(err, errors.ErrCodeInvalidGeometry) {
			t.Errorf("dpr %v: error = %v, want INVALID_GEOMETRY", dpr, err)
		}
	}
}

func TestCapturePageTooManyTiles(t *testing.T) {
	r := newRunner(t)
	_, err := r.CapturePage(context.Background(), stripes(2, capture.MaxTiles+1), capture.ModeFullPage, FrameOptions{
		ViewportHeight: 1,
	})
	if !errors.Is(err, errors.ErrCodeInvalidGeometry) {
		t.Errorf("error = %v, want INVALID_GEOMETRY", err)
	}
}
