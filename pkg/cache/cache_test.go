package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/pageshot/pkg/clock"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(epoch)
	c, err := NewFileCacheWithClock(t.TempDir(), clk)
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "missing"); hit || err != nil {
		t.Errorf("Get(missing) = hit %v, err %v, want miss", hit, err)
	}

	if err := c.Set(ctx, "a", []byte("alpha"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "b", []byte("beta"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, hit, err := c.Get(ctx, "a")
	if err != nil || !hit || string(data) != "alpha" {
		t.Errorf("Get(a) = %q, %v, %v, want alpha hit", data, hit, err)
	}

	clk.Advance(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("expired entry should miss")
	}
	if _, hit, _ := c.Get(ctx, "b"); !hit {
		t.Error("entry without ttl should not expire")
	}

	if err := c.Delete(ctx, "b"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "b"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("deleted entry should miss")
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"x", "y", "z"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "x"); hit {
		t.Error("Clear should remove entries")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	base := ExportKeyOpts{Format: "pdf", Quality: 92, PageSize: "a4"}
	k1 := k.ExportKey("hash123", base)
	if !strings.HasPrefix(k1, "export:") {
		t.Errorf("ExportKey = %s, want export: prefix", k1)
	}
	if k1 != k.ExportKey("hash123", base) {
		t.Error("ExportKey should be deterministic")
	}

	variants := []ExportKeyOpts{
		{Format: "png", Quality: 92, PageSize: "a4"},
		{Format: "pdf", Quality: 80, PageSize: "a4"},
		{Format: "pdf", Quality: 92, PageSize: "letter"},
	}
	for _, v := range variants {
		if k.ExportKey("hash123", v) == k1 {
			t.Errorf("ExportKey(%+v) collides with %+v", v, base)
		}
	}
	if k.ExportKey("hash456", base) == k1 {
		t.Error("Different image hashes should produce different keys")
	}

	p1 := k.PreviewKey("hash123", 320, 320)
	if !strings.HasPrefix(p1, "preview:") || p1 == k.PreviewKey("hash123", 640, 640) {
		t.Errorf("PreviewKey unexpected: %s", p1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "svc:")
	key := scoped.ExportKey("h", ExportKeyOpts{Format: "png"})
	if want := "svc:" + NewDefaultKeyer().ExportKey("h", ExportKeyOpts{Format: "png"}); key != want {
		t.Errorf("ExportKey = %s, want %s", key, want)
	}
	if !strings.HasPrefix(scoped.PreviewKey("h", 1, 1), "svc:preview:") {
		t.Error("PreviewKey should be prefixed")
	}

	if _, ok := NewScopedKeyer(nil, "").(DefaultKeyer); !ok {
		t.Error("empty prefix with nil inner should yield DefaultKeyer")
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("wrapped error should unwrap to ErrNetwork")
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	plain := errors.New("plain")

	tests := []struct {
		name       string
		failures   int
		err        error
		wantCalls  int
		wantErr    error
		wantSleeps []time.Duration
	}{
		{"success", 0, nil, 1, nil, nil},
		{"not retryable", 1, plain, 1, plain, nil},
		{"recovers", 1, Retryable(ErrNetwork), 2, nil, []time.Duration{time.Second}},
		{"exhausted", 5, Retryable(ErrNetwork), 3, ErrNetwork, []time.Duration{time.Second, 2 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewFake(epoch)
			calls := 0
			err := retry(ctx, clk, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) && !(err == nil && tt.wantErr == nil) {
				t.Errorf("retry() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if got := clk.Sleeps(); len(got) != len(tt.wantSleeps) {
				t.Errorf("sleeps = %v, want %v", got, tt.wantSleeps)
			} else {
				for i := range got {
					if got[i] != tt.wantSleeps[i] {
						t.Errorf("sleep %d = %v, want %v", i, got[i], tt.wantSleeps[i])
					}
				}
			}
		})
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrNetwork)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestTransient(t *testing.T) {
	if transient(nil) != nil {
		t.Error("transient(nil) should be nil")
	}
	if IsRetryable(transient(context.Canceled)) {
		t.Error("context errors should not be retried")
	}
	if !IsRetryable(transient(errors.New("connection refused"))) {
		t.Error("connection errors should be retried")
	}
}
