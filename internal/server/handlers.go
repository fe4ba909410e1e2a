package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/pageshot/pkg/buildinfo"
	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/sink"
	"github.com/matzehuels/pageshot/pkg/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

// handleCreate captures the uploaded page bitmap through the simulated
// viewport and stores the stitched result.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	mode := capture.ModeFullPage
	if v := q.Get("mode"); v != "" {
		m, err := capture.ParseMode(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		mode = m
	}
	frame := s.cfg.Frame
	if v := q.Get("dpr"); v != "" {
		dpr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid dpr: %q", v))
			return
		}
		if err := capture.ValidateDevicePixelRatio(dpr); err != nil {
			s.writeError(w, r, err)
			return
		}
		frame.DevicePixelRatio = dpr
	}
	pageURL := q.Get("url")
	if err := errors.ValidateURL(pageURL); err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	src, err := raster.Load(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if n, err := s.store.Cleanup(ctx); err != nil {
		s.logger.Warn("cleanup failed", "err", err)
	} else if n > 0 {
		s.logger.Debug("removed expired captures", "count", n)
	}

	shot, err := s.runner.CapturePage(ctx, src.Image, mode, frame)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := raster.EncodePNG(shot.Source.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := store.NewRecord(s.cfg.Clock, png, store.Meta{
		SourceID:         q.Get("source"),
		URL:              pageURL,
		Title:            q.Get("title"),
		DevicePixelRatio: shot.DevicePixelRatio,
		Mode:             shot.Mode,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Put(ctx, rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("stored capture", "id", rec.ID, "mode", rec.Mode, "tiles", shot.Tiles,
		"size", fmt.Sprintf("%dx%d", rec.Width, rec.Height))
	w.Header().Set("Location", "/captures/"+rec.ID)
	writeJSON(w, http.StatusCreated, newCaptureView(rec, s.cfg.TTL))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]captureView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newCaptureView(rec, s.cfg.TTL))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newCaptureView(rec, s.cfg.TTL))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateCaptureID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	writeBytes(w, rec.ImageMIME, rec.Image)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	width, err := intParam(r, "width", pipeline.DefaultPreviewSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	height, err := intParam(r, "height", pipeline.DefaultPreviewSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	src, err := raster.Load(rec.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, hit, err := s.runner.Preview(r.Context(), src, width, height)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setCacheHeader(w, hit)
	writeBytes(w, raster.MIMEPNG, data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	quality, err := intParam(r, "quality", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := pipeline.Options{
		Format:   q.Get("format"),
		Quality:  quality,
		PageSize: q.Get("page_size"),
		Refresh:  q.Get("refresh") == "true",
		Logger:   s.logger,
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, r, err)
		return
	}

	src, err := raster.Load(rec.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, hit, err := s.runner.Export(r.Context(), src, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := sink.DefaultFilename(rec.URL, rec.CreatedAt, string(rec.Mode)) + sink.Extension(opts.Format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	setCacheHeader(w, hit)
	writeBytes(w, opts.MIME(), data)
}

// record loads the record named by the {id} URL parameter, writing the
// error response itself when it fails.
func (s *Server) record(w http.ResponseWriter, r *http.Request) (*store.Record, bool) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateCaptureID(id); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return rec, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid %s: %q", name, v)
	}
	return n, nil
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
}
