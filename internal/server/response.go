package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/observability"
	"github.com/matzehuels/pageshot/pkg/store"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// captureView is a record without its image bytes.
type captureView struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	SourceID         string    `json:"source_id,omitempty"`
	URL              string    `json:"url,omitempty"`
	Title            string    `json:"title,omitempty"`
	Mode             string    `json:"mode"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	DevicePixelRatio float64   `json:"dpr"`
	ImageMIME        string    `json:"image_mime"`
	Bytes            int       `json:"bytes"`
}

func newCaptureView(rec *store.Record, ttl time.Duration) captureView {
	return captureView{
		ID:               rec.ID,
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt(ttl),
		SourceID:         rec.SourceID,
		URL:              rec.URL,
		Title:            rec.Title,
		Mode:             string(rec.Mode),
		Width:            rec.Width,
		Height:           rec.Height,
		DevicePixelRatio: rec.DevicePixelRatio,
		ImageMIME:        rec.ImageMIME,
		Bytes:            len(rec.Image),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, mime string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: errors.UserMessage(err)})
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) (int, errors.Code) {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput
	}

	code := errors.GetCode(err)
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound, code
	case errors.ErrCodeCaptureExpired:
		return http.StatusGone, code
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidPath,
		errors.ErrCodeInvalidGeometry,
		errors.ErrCodeInvalidPageSize,
		errors.ErrCodeUnsupportedFormat:
		return http.StatusBadRequest, code
	case errors.ErrCodeInvalidImage,
		errors.ErrCodeInvalidPageContent,
		errors.ErrCodeEmptyDocument:
		return http.StatusUnprocessableEntity, code
	case errors.ErrCodeStorage:
		return http.StatusServiceUnavailable, code
	case "":
		return http.StatusInternalServerError, errors.ErrCodeInternal
	}
	return http.StatusInternalServerError, code
}
