// Package server exposes the capture store and export pipeline over HTTP.
//
// Routes:
//
//	GET    /healthz
//	POST   /captures                    raw image body; ?url&title&mode&dpr&source
//	GET    /captures
//	GET    /captures/{id}
//	GET    /captures/{id}/image
//	GET    /captures/{id}/preview       ?width&height
//	GET    /captures/{id}/export        ?format&quality&page_size&refresh
//	DELETE /captures/{id}
//
// Errors are returned as JSON objects {"code": ..., "message": ...}.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pageshot/pkg/clock"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/store"
)

// DefaultMaxUploadBytes bounds POST /captures bodies.
const DefaultMaxUploadBytes = 32 << 20

const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	// Frame is the simulated viewport captures are taken through.
	Frame pipeline.FrameOptions

	// MaxUploadBytes bounds request bodies. Zero selects
	// DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// TTL is the store's record lifetime, reported as expires_at. Zero
	// selects store.DefaultTTL.
	TTL time.Duration

	// Clock stamps new records. Nil means the real clock.
	Clock clock.Clock
}

// Server serves the HTTP API.
type Server struct {
	store  store.Store
	runner *pipeline.Runner
	cfg    Config
	logger *log.Logger
	router chi.Router
}

// New creates a server over st and runner.
func New(st store.Store, runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = store.DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{store: st, runner: runner, cfg: cfg, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "INVALID_INPUT", Message: "method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/captures", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Get("/image", s.handleImage)
			r.Get("/preview", s.handlePreview)
			r.Get("/export", s.handleExport)
		})
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
