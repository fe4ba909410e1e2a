// Package store persists capture records between the capture and the
// export step.
//
// A capture record holds the stitched (or single viewport) image together
// with the page it was taken from. Records live for [DefaultTTL] after
// creation; expired records are never returned and are swept by Cleanup,
// which callers run at startup and before each new capture.
//
// Backends:
//   - [MemoryStore]: in-process, for tests and the HTTP service without
//     persistence
//   - [FileStore]: one JSON file per record, for the CLI
//   - [RedisStore]: records as JSON values with a server-side expiry
//   - [MongoStore]: one document per record with a TTL index
//
// All backends take an injected [clock.Clock] so expiry is testable.
package store

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/clock"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/raster"
)

// DefaultTTL is how long a capture record stays retrievable.
const DefaultTTL = 30 * time.Minute

// KeyPrefix namespaces record keys in shared backends.
const KeyPrefix = "capture:"

// Key returns the storage key for a record id.
func Key(id string) string {
	return KeyPrefix + id
}

// Record is a stored capture.
type Record struct {
	ID               string       `json:"id" bson:"_id"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
	SourceID         string       `json:"source_id,omitempty" bson:"source_id,omitempty"`
	URL              string       `json:"url,omitempty" bson:"url,omitempty"`
	Title            string       `json:"title,omitempty" bson:"title,omitempty"`
	ImageMIME        string       `json:"image_mime" bson:"image_mime"`
	Image            []byte       `json:"image" bson:"image"`
	Width            int          `json:"width" bson:"width"`
	Height           int          `json:"height" bson:"height"`
	DevicePixelRatio float64      `json:"dpr" bson:"dpr"`
	Mode             capture.Mode `json:"mode" bson:"mode"`
}

// Meta describes where a capture came from.
type Meta struct {
	SourceID         string
	URL              string
	Title            string
	DevicePixelRatio float64
	Mode             capture.Mode
}

// NewRecord creates a record for an encoded image with a fresh id. An empty
// Mode means viewport.
func NewRecord(clk clock.Clock, image []byte, meta Meta) (*Record, error) {
	w, h, mime, err := raster.DecodeConfig(image)
	if err != nil {
		return nil, err
	}
	mode, err := capture.ParseMode(string(meta.Mode))
	if err != nil {
		return nil, err
	}
	if meta.DevicePixelRatio <= 0 {
		meta.DevicePixelRatio = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Record{
		ID:               uuid.NewString(),
		CreatedAt:        clk.Now().UTC(),
		SourceID:         meta.SourceID,
		URL:              meta.URL,
		Title:            meta.Title,
		ImageMIME:        mime,
		Image:            image,
		Width:            w,
		Height:           h,
		DevicePixelRatio: meta.DevicePixelRatio,
		Mode:             mode,
	}, nil
}

// ExpiresAt returns when the record stops being retrievable.
func (r *Record) ExpiresAt(ttl time.Duration) time.Time {
	return r.CreatedAt.Add(ttl)
}

// Expired reports whether the record is older than ttl at now.
func (r *Record) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}

// Store is the interface for capture record backends.
type Store interface {
	// Put stores a record, replacing any record with the same id.
	Put(ctx context.Context, rec *Record) error

	// Get returns a record. Missing records yield NOT_FOUND, expired ones
	// CAPTURE_EXPIRED.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all live records, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Cleanup removes expired records and reports how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Option configures a store backend.
type Option func(*settings)

type settings struct {
	clock  clock.Clock
	ttl    time.Duration
	logger *log.Logger
}

// WithClock sets the clock used for creation and expiry checks.
func WithClock(c clock.Clock) Option {
	return func(o *settings) { o.clock = c }
}

// WithTTL overrides [DefaultTTL].
func WithTTL(ttl time.Duration) Option {
	return func(o *settings) { o.ttl = ttl }
}

// WithLogger sets the logger for records a backend skips. Default discards.
func WithLogger(l *log.Logger) Option {
	return func(o *settings) { o.logger = l }
}

func buildOptions(opts []Option) settings {
	o := settings{clock: clock.Real{}, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return o
}

func validate(rec *Record) error {
	if rec == nil {
		return errors.New(errors.ErrCodeInvalidInput, "record is nil")
	}
	if err := errors.ValidateCaptureID(rec.ID); err != nil {
		return err
	}
	if len(rec.Image) == 0 {
		return errors.New(errors.ErrCodeInvalidImage, "record %s has no image", rec.ID)
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "capture %s not found", id)
}

func expired(id string) error {
	return errors.New(errors.ErrCodeCaptureExpired, "capture %s has expired", id)
}

func sortNewestFirst(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
