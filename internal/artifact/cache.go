package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte cache with expiry. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedBackend is a read-through cache in front of another Backend.
// Artifacts are immutable, so a cached copy never goes stale; entries are
// only added after the inner backend has published the blob.
type CachedBackend struct {
	inner  Backend
	cache  Cache
	ttl    time.Duration
	prefix string
}

var _ Backend = (*CachedBackend)(nil)

func NewCachedBackend(inner Backend, cache Cache, ttl time.Duration) *CachedBackend {
	return &CachedBackend{inner: inner, cache: cache, ttl: ttl, prefix: "artifact:"}
}

func (c *CachedBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := c.inner.Put(ctx, key, data); err != nil {
		return err
	}
	c.store(ctx, key, data)
	return nil
}

func (c *CachedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := c.cache.Get(ctx, c.prefix+key); err != nil {
		slog.Warn("artifact cache get failed", "key", key, "error", err)
	} else if data != nil {
		return data, nil
	}

	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, data)
	return data, nil
}

// Cache failures never fail the artifact operation.
func (c *CachedBackend) store(ctx context.Context, key string, data []byte) {
	if err := c.cache.Set(ctx, c.prefix+key, data, c.ttl); err != nil {
		slog.Warn("artifact cache set failed", "key", key, "error", err)
	}
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
