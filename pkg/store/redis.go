package store

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/errors"
)

// RedisConfig configures a [RedisStore].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore stores records as JSON values under capture:<id> with a
// server-side expiry equal to the TTL.
type RedisStore struct {
	client *redis.Client
	opts   settings
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to redis at %s", cfg.Addr)
	}
	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "marshal capture")
	}
	ttl := rec.ExpiresAt(s.opts.ttl).Sub(s.opts.clock.Now())
	if ttl <= 0 {
		return expired(rec.ID)
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		return retryable(s.client.Set(ctx, Key(rec.ID), data, ttl).Err())
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "store capture %s", rec.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := errors.ValidateCaptureID(id); err != nil {
		return nil, err
	}
	rec, err := s.get(ctx, Key(id))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(id)
	}
	if rec.Expired(s.opts.clock.Now(), s.opts.ttl) {
		_ = s.client.Del(ctx, Key(id)).Err()
		return nil, expired(id)
	}
	return rec, nil
}

// get returns nil, nil for a missing key.
func (s *RedisStore) get(ctx context.Context, key string) (*Record, error) {
	data, err := s.read(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeRecord(key, data)
}

// read returns nil, nil for a missing key.
func (s *RedisStore) read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = s.client.Get(ctx, key).Bytes()
		return retryable(err)
	})
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read %s", key)
	}
	return data, nil
}

func decodeRecord(key string, data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "parse %s", key)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := errors.ValidateCaptureID(id); err != nil {
		return err
	}
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "delete capture %s", id)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Record, error) {
	var out []*Record
	now := s.opts.clock.Now()
	err := s.scan(ctx, func(key string, rec *Record) error {
		if !rec.Expired(now, s.opts.ttl) {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// Cleanup deletes records that are past the TTL by the store's clock.
// Redis expires keys on its own; this only catches clock skew and keys
// written without an expiry.
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	now := s.opts.clock.Now()
	err := s.scan(ctx, func(key string, rec *Record) error {
		if !rec.Expired(now, s.opts.ttl) {
			return nil
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorage, err, "delete %s", key)
		}
		removed += int(n)
		return nil
	})
	return removed, err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// scan calls fn for every readable record. Values that do not parse are
// logged and skipped so one bad key cannot hide the rest.
func (s *RedisStore) scan(ctx context.Context, fn func(key string, rec *Record) error) error {
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.read(ctx, key)
		if err != nil {
			return err
		}
		if data == nil {
			continue // expired between SCAN and GET
		}
		rec, err := decodeRecord(key, data)
		if err != nil {
			s.opts.logger.Warn("skipping unreadable capture", "key", key, "error", err)
			continue
		}
		if err := fn(key, rec); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "scan captures")
	}
	return nil
}

// retryable marks transient Redis failures for retry. Missing keys and
// cancelled contexts are returned as is.
func retryable(err error) error {
	if err == nil || stderrors.Is(err, redis.Nil) ||
		stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return cache.Retryable(err)
}

var _ Store = (*RedisStore)(nil)
