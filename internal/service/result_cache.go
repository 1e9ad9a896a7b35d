package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/cadvault/internal/infrastructure/redis"
	"github.com/yourorg/cadvault/pkg/cache"
)

// ResultCache stores serialized extraction results. Backed by Redis when one
// is configured, by the in-process TTL cache otherwise.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

type memoryResultCache struct {
	c *cache.Cache
}

// NewMemoryResultCache wraps the in-process TTL cache.
func NewMemoryResultCache(c *cache.Cache) ResultCache {
	return &memoryResultCache{c: c}
}

func (m *memoryResultCache) Get(_ context.Context, key string) (string, bool) {
	return m.c.Get(key)
}

func (m *memoryResultCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *memoryResultCache) Invalidate(_ context.Context, key string) {
	// Cached keys carry a modtime suffix; drop everything for the path.
	m.c.Invalidate(key)
}

type redisResultCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisResultCache wraps the shared Redis client. Cache failures are
// logged and treated as misses; extraction always has the file to fall
// back on.
func NewRedisResultCache(client *redis.Client, logger *slog.Logger) ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisResultCache{client: client, logger: logger}
}

func (r *redisResultCache) Get(ctx context.Context, key string) (string, bool) {
	val, ok, err := r.client.Get(ctx, key)
	if err != nil {
		r.logger.Warn("result cache read failed", slog.String("error", err.Error()))
		return "", false
	}
	return val, ok
}

func (r *redisResultCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl); err != nil {
		r.logger.Warn("result cache write failed", slog.String("error", err.Error()))
	}
}

func (r *redisResultCache) Invalidate(ctx context.Context, key string) {
	if err := r.client.Delete(ctx, key); err != nil {
		r.logger.Warn("result cache invalidation failed", slog.String("error", err.Error()))
	}
}
