// Package cache stores rendered exports so that repeated requests for the
// same capture, format and options skip re-encoding.
//
// Keys are derived from a SHA-256 hash of the source image plus the export
// options (see [Keyer]). Values are opaque byte slices: encoded PNG, JPEG or
// PDF documents.
//
// Backends:
//   - [FileCache]: hashed file tree, for the CLI
//   - [RedisCache]: shared cache for the HTTP service
//   - [NullCache]: disables caching
package cache

import (
	"context"
	"time"
)

// Cache is the interface for export cache backends.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	// TTLExport is how long an encoded export stays cached. Exports are
	// keyed by content hash so stale entries are never wrong, only unused.
	TTLExport = 24 * time.Hour

	// TTLPreview is how long a preview thumbnail stays cached.
	TTLPreview = time.Hour
)

// ExportKeyOpts are the export options that affect the encoded output.
type ExportKeyOpts struct {
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	PageSize string `json:"page_size"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ExportKey returns the key for an encoded export of an image.
	ExportKey(imageHash string, opts ExportKeyOpts) string

	// PreviewKey returns the key for a thumbnail of an image.
	PreviewKey(imageHash string, maxWidth, maxHeight int) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ExportKey returns "export:<sha256(hash, opts)>".
func (DefaultKeyer) ExportKey(imageHash string, opts ExportKeyOpts) string {
	return hashKey("export", imageHash, opts)
}

// PreviewKey returns "preview:<sha256(hash, w, h)>".
func (DefaultKeyer) PreviewKey(imageHash string, maxWidth, maxHeight int) string {
	return hashKey("preview", imageHash, maxWidth, maxHeight)
}
