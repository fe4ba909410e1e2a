package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// FileStore stores each record as a JSON file in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
	opts    settings
}

// NewFileStore creates a file-based store.
// If baseDir is empty, defaults to ~/.config/pageshot/captures/
func NewFileStore(baseDir string, opts ...Option) (*FileStore, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "create capture dir")
	}
	return &FileStore{baseDir: baseDir, opts: buildOptions(opts)}, nil
}

// DefaultDir returns the default capture directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "pageshot", "captures"), nil
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.baseDir, strings.ReplaceAll(Key(id), ":", "_")+".json")
}

func (s *FileStore) Put(ctx context.Context, rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "marshal capture")
	}
	if err := os.WriteFile(s.recordPath(rec.ID), data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write capture file")
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := errors.ValidateCaptureID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(id)
	rec, err := readRecord(path)
	if os.IsNotExist(err) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read capture %s", id)
	}
	if rec.Expired(s.opts.clock.Now(), s.opts.ttl) {
		_ = os.Remove(path)
		return nil, expired(id)
	}
	return rec, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidateCaptureID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeStorage, err, "remove capture file")
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	now := s.opts.clock.Now()
	err := s.walk(func(path string, rec *Record) {
		if !rec.Expired(now, s.opts.ttl) {
			out = append(out, rec)
		}
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.opts.clock.Now()
	err := s.walk(func(path string, rec *Record) {
		if rec.Expired(now, s.opts.ttl) && os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for capture files.
func (s *FileStore) Path() string {
	return s.baseDir
}

// walk calls fn for every readable record file. Unreadable files are logged
// and skipped.
func (s *FileStore) walk(fn func(path string, rec *Record)) error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "read capture dir")
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		rec, err := readRecord(path)
		if err != nil {
			s.opts.logger.Warn("skipping unreadable capture", "path", path, "error", err)
			continue
		}
		fn(path, rec)
	}
	return nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "parse capture")
	}
	return &rec, nil
}

var _ Store = (*FileStore)(nil)
