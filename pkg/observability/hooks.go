// Package observability lets the CLI or a service observe the capture and
// export pipeline without the libraries knowing who is listening.
//
// Libraries fire events through the registered hooks:
//
//	observability.Pipeline().OnCaptureStart(ctx, "fullpage")
//	observability.Cache().OnCacheMiss(ctx, "export")
//
// Until something is registered every hook is [Noop]. [LogHooks] writes the
// events to a charm logger; the CLI registers it under --verbose.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// PipelineHooks receives capture (tiling plus stitching) and export
// (png, jpg or pdf encoding) events.
type PipelineHooks interface {
	OnCaptureStart(ctx context.Context, mode string)
	OnCaptureComplete(ctx context.Context, mode string, tiles int, duration time.Duration, err error)
	OnExportStart(ctx context.Context, format string)
	OnExportComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
}

// CacheHooks receives export and preview cache lookups and writes. kind is
// "export" or "preview".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, kind string)
	OnCacheMiss(ctx context.Context, kind string)
	OnCacheSet(ctx context.Context, kind string, size int)
}

// HTTPHooks receives events from the HTTP service.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, path string)
	OnResponse(ctx context.Context, method, path string, status int, duration time.Duration)

	// OnError fires for requests answered with an error body.
	OnError(ctx context.Context, method, path string, err error)
}

// Noop ignores every event.
type Noop struct{}

func (Noop) OnCaptureStart(context.Context, string)                               {}
func (Noop) OnCaptureComplete(context.Context, string, int, time.Duration, error) {}
func (Noop) OnExportStart(context.Context, string)                                {}
func (Noop) OnExportComplete(context.Context, string, int, time.Duration, error)  {}
func (Noop) OnCacheHit(context.Context, string)                                   {}
func (Noop) OnCacheMiss(context.Context, string)                                  {}
func (Noop) OnCacheSet(context.Context, string, int)                              {}
func (Noop) OnRequest(context.Context, string, string)                            {}
func (Noop) OnResponse(context.Context, string, string, int, time.Duration)       {}
func (Noop) OnError(context.Context, string, string, error)                       {}

var (
	_ PipelineHooks = Noop{}
	_ CacheHooks    = Noop{}
	_ HTTPHooks     = Noop{}
)

// =============================================================================
// Registry
// =============================================================================

// hookSet is replaced as a whole, so readers never see a torn update.
type hookSet struct {
	pipeline PipelineHooks
	cache    CacheHooks
	http     HTTPHooks
}

var registered atomic.Pointer[hookSet]

func init() { Reset() }

func update(fn func(*hookSet)) {
	for {
		old := registered.Load()
		next := *old
		fn(&next)
		if registered.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetPipelineHooks registers h. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h != nil {
		update(func(s *hookSet) { s.pipeline = h })
	}
}

// SetCacheHooks registers h. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(s *hookSet) { s.cache = h })
	}
}

// SetHTTPHooks registers h. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(s *hookSet) { s.http = h })
	}
}

func Pipeline() PipelineHooks { return registered.Load().pipeline }
func Cache() CacheHooks       { return registered.Load().cache }
func HTTP() HTTPHooks         { return registered.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	registered.Store(&hookSet{pipeline: Noop{}, cache: Noop{}, http: Noop{}})
}
