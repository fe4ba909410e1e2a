package store

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/clock"
	"github.com/matzehuels/pageshot/pkg/errors"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newRecord(t *testing.T, clk clock.Clock, url string) *Record {
	t.Helper()
	rec, err := NewRecord(clk, testPNG(t, 4, 6), Meta{URL: url})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return rec
}

// newRedisStore returns a RedisStore backed by an in-process miniredis.
func newRedisStore(t *testing.T, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// backends returns fresh stores sharing one fake clock.
func backends(t *testing.T) (*clock.Fake, map[string]Store) {
	t.Helper()
	clk := clock.NewFake(epoch)
	fs, err := NewFileStore(t.TempDir(), WithClock(clk))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	rs, _ := newRedisStore(t, WithClock(clk))
	return clk, map[string]Store{
		"memory": NewMemoryStore(WithClock(clk)),
		"file":   fs,
		"redis":  rs,
	}
}

func TestKey(t *testing.T) {
	if got := Key("abc"); got != "capture:abc" {
		t.Errorf("Key() = %q, want %q", got, "capture:abc")
	}
}

func TestNewRecord(t *testing.T) {
	clk := clock.NewFake(epoch)
	rec, err := NewRecord(clk, testPNG(t, 12, 30), Meta{URL: "https://example.com/a", Title: "A"})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.ID == "" || errors.ValidateCaptureID(rec.ID) != nil {
		t.Errorf("ID = %q, want a valid id", rec.ID)
	}
	if rec.Width != 12 || rec.Height != 30 {
		t.Errorf("size = %dx%d, want 12x30", rec.Width, rec.Height)
	}
	if rec.ImageMIME != "image/png" {
		t.Errorf("ImageMIME = %q, want image/png", rec.ImageMIME)
	}
	if !rec.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, epoch)
	}
	if rec.Mode != capture.ModeViewport || rec.DevicePixelRatio != 1 {
		t.Errorf("defaults = %q / %v, want viewport / 1", rec.Mode, rec.DevicePixelRatio)
	}

	full, err := NewRecord(clk, testPNG(t, 12, 30), Meta{Mode: capture.ModeFullPage})
	if err != nil || full.Mode != capture.ModeFullPage {
		t.Errorf("NewRecord(fullpage) = %v, %v", full, err)
	}
	if _, err := NewRecord(clk, testPNG(t, 12, 30), Meta{Mode: "tiled"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("NewRecord(tiled) error = %v, want INVALID_INPUT", err)
	}

	other := newRecord(t, clk, "")
	if other.ID == rec.ID {
		t.Error("NewRecord reused an id")
	}

	if _, err := NewRecord(clk, []byte("nope"), Meta{}); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("NewRecord(garbage) error = %v, want INVALID_IMAGE", err)
	}
}

func TestRecordExpired(t *testing.T) {
	rec := &Record{CreatedAt: epoch}
	tests := []struct {
		after time.Duration
		want  bool
	}{
		{0, false},
		{DefaultTTL, false},
		{DefaultTTL + time.Second, true},
	}
	for _, tt := range tests {
		if got := rec.Expired(epoch.Add(tt.after), DefaultTTL); got != tt.want {
			t.Errorf("Expired(+%v) = %v, want %v", tt.after, got, tt.want)
		}
	}
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	clk, stores := backends(t)
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			rec := newRecord(t, clk, "https://example.com")
			if err := s.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(ctx, rec.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.URL != rec.URL || !bytes.Equal(got.Image, rec.Image) || got.Width != rec.Width {
				t.Errorf("Get() = %+v, want %+v", got, rec)
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	_, stores := backends(t)
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "does-not-exist"); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("Get() error = %v, want NOT_FOUND", err)
			}
			if _, err := s.Get(ctx, "../escape"); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Get(bad id) error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clk, stores := backends(t)
	recs := map[string]*Record{}
	for name, s := range stores {
		rec := newRecord(t, clk, "")
		if err := s.Put(ctx, rec); err != nil {
			t.Fatalf("%s: Put: %v", name, err)
		}
		recs[name] = rec
	}

	clk.Advance(DefaultTTL + time.Minute)

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, recs[name].ID); !errors.Is(err, errors.ErrCodeCaptureExpired) {
				t.Errorf("Get() error = %v, want CAPTURE_EXPIRED", err)
			}
			// Expired records are dropped on read.
			if _, err := s.Get(ctx, recs[name].ID); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("second Get() error = %v, want NOT_FOUND", err)
			}
		})
	}
}

func TestStoreListAndCleanup(t *testing.T) {
	ctx := context.Background()
	clk, stores := backends(t)
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			old := newRecord(t, clk, "old")
			if err := s.Put(ctx, old); err != nil {
				t.Fatal(err)
			}
			clk.Advance(20 * time.Minute)
			mid := newRecord(t, clk, "mid")
			clk.Advance(time.Minute)
			recent := newRecord(t, clk, "recent")
			for _, r := range []*Record{mid, recent} {
				if err := s.Put(ctx, r); err != nil {
					t.Fatal(err)
				}
			}

			clk.Advance(10 * time.Minute) // old is now 31 minutes old

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].URL != "recent" || list[1].URL != "mid" {
				urls := make([]string, len(list))
				for i, r := range list {
					urls[i] = r.URL
				}
				t.Errorf("List() = %v, want [recent mid]", urls)
			}

			n, err := s.Cleanup(ctx)
			if err != nil {
				t.Fatalf("Cleanup: %v", err)
			}
			if n != 1 {
				t.Errorf("Cleanup() removed %d, want 1", n)
			}
			if _, err := s.Get(ctx, old.ID); !errors.Is(err, errors.ErrCodeNotFound) {
				t.Errorf("Get(old) error = %v, want NOT_FOUND", err)
			}

			for _, r := range []*Record{mid, recent} {
				if err := s.Delete(ctx, r.ID); err != nil {
					t.Errorf("Delete: %v", err)
				}
			}
			if err := s.Delete(ctx, mid.ID); err != nil {
				t.Errorf("Delete(missing) error = %v, want nil", err)
			}
		})
	}
}

func TestStorePutValidation(t *testing.T) {
	ctx := context.Background()
	_, stores := backends(t)
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Put(nil) error = %v, want INVALID_INPUT", err)
			}
			if err := s.Put(ctx, &Record{ID: "x"}); !errors.Is(err, errors.ErrCodeInvalidImage) {
				t.Errorf("Put(no image) error = %v, want INVALID_IMAGE", err)
			}
		})
	}
}

func TestFileStorePermissions(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewFake(epoch)
	s, err := NewFileStore(dir, WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	rec := newRecord(t, clk, "")
	if err := s.Put(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, "capture_"+rec.ID+".json"))
	if err != nil {
		t.Fatalf("record file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 600", perm)
	}
	if s.Path() != dir {
		t.Errorf("Path() = %q, want %q", s.Path(), dir)
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, WithClock(clock.NewFake(epoch)))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "capture_junk.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %d records, want 0", len(list))
	}
}

func TestRedisStoreSkipsCorruptValues(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	var logs bytes.Buffer
	s, mr := newRedisStore(t, WithClock(clk), WithLogger(log.New(&logs)))

	rec := newRecord(t, clk, "good")
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set(Key("junk"), "{"); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Errorf("List() = %d records, want only %s", len(list), rec.ID)
	}
	if !strings.Contains(logs.String(), "skipping unreadable capture") || !strings.Contains(logs.String(), Key("junk")) {
		t.Errorf("log = %q, want a warning naming the corrupt key", logs.String())
	}

	clk.Advance(DefaultTTL + time.Minute)
	n, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("Cleanup() removed %d, want 1", n)
	}
	if mr.Exists(Key(rec.ID)) {
		t.Error("expired record still in redis")
	}

	// A direct read of the corrupt key still reports it.
	if _, err := s.Get(ctx, "junk"); !errors.Is(err, errors.ErrCodeStorage) {
		t.Errorf("Get(junk) error = %v, want STORAGE", err)
	}
}

func TestRedisStoreExpiresServerSide(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	s, mr := newRedisStore(t, WithClock(clk))

	rec := newRecord(t, clk, "")
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(Key(rec.ID)); ttl != DefaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultTTL)
	}
	mr.FastForward(DefaultTTL)
	if _, err := s.Get(ctx, rec.ID); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get() error = %v, want NOT_FOUND", err)
	}
}
