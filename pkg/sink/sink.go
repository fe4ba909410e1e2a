// Package sink delivers finished exports to their destination.
//
// A [Sink] receives the encoded bytes together with a suggested base
// filename and MIME type. [FileSink] writes into a directory and
// [ClipboardSink] copies PNG exports to the system clipboard.
package sink

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// Sink stores an export and returns where it went.
type Sink interface {
	Save(ctx context.Context, data []byte, filename, mime string) (string, error)
}

// FileSink writes exports as files in Dir.
type FileSink struct {
	Dir string

	// Overwrite allows replacing existing files.
	Overwrite bool
}

// Save writes data to Dir/filename. The extension matching mime is added
// when filename lacks it.
func (s FileSink) Save(ctx context.Context, data []byte, filename, mime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "nothing to save")
	}
	if err := errors.ValidateFilename(filename); err != nil {
		return "", err
	}
	if ext := ExtensionForMIME(mime); ext != "" && !strings.EqualFold(filepath.Ext(filename), ext) {
		filename += ext
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "create output dir")
	}

	path := filepath.Join(dir, filename)
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !s.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if os.IsExist(err) {
		return "", errors.New(errors.ErrCodeInvalidPath, "%s already exists", path)
	}
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "close %s", path)
	}
	return path, nil
}

var _ Sink = FileSink{}

// fallbackName is used when no hostname or mode is known.
const fallbackName = "capture"

// DefaultFilename builds "<hostname>_<YYYYMMDD-HHMMSS>_<mode>" for a
// capture of rawURL taken at createdAt.
func DefaultFilename(rawURL string, createdAt time.Time, mode string) string {
	host := fallbackName
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	if mode == "" {
		mode = fallbackName
	}
	return fmt.Sprintf("%s_%s_%s", host, createdAt.Format("20060102-150405"), mode)
}

var (
	mimeTypes = map[string]string{
		"png": "image/png",
		"jpg": "image/jpeg",
		"pdf": "application/pdf",
	}
	extensions = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"application/pdf": ".pdf",
	}
)

// MIMEType returns the MIME type for an export format, or
// application/octet-stream.
func MIMEType(format string) string {
	if m, ok := mimeTypes[format]; ok {
		return m
	}
	return "application/octet-stream"
}

// Extension returns the file extension (with dot) for an export format.
func Extension(format string) string {
	return ExtensionForMIME(MIMEType(format))
}

// ExtensionForMIME returns the file extension for a MIME type, or "".
func ExtensionForMIME(mime string) string {
	return extensions[mime]
}
