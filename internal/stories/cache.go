package stories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	adminListCacheKey = "chronicle:admin:stories"
	adminListCacheTTL = 5 * time.Minute
)

// ErrCacheMiss indicates no cached listing is available.
var ErrCacheMiss = errors.New("stories: cache miss")

// ListCache holds the rendered admin story list between mutations.
// Every write path invalidates it, so a stale entry can only outlive a
// mutation by the duration of a concurrent read.
type ListCache interface {
	Get(ctx context.Context) ([]Chronicle, error)
	Set(ctx context.Context, stories []Chronicle) error
	Invalidate(ctx context.Context) error
}

// RedisListCache implements ListCache on a shared Redis instance.
type RedisListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisListCache wraps the provided client. TTL <= 0 uses the default.
func NewRedisListCache(client *redis.Client, ttl time.Duration) *RedisListCache {
	if ttl <= 0 {
		ttl = adminListCacheTTL
	}
	return &RedisListCache{client: client, ttl: ttl}
}

// Get returns the cached story list or ErrCacheMiss.
func (c *RedisListCache) Get(ctx context.Context) ([]Chronicle, error) {
	raw, err := c.client.Get(ctx, adminListCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var stories []Chronicle
	if err := json.Unmarshal(raw, &stories); err != nil {
		// A corrupt entry behaves like a miss; the next Set repairs it.
		return nil, ErrCacheMiss
	}
	return stories, nil
}

// Set stores the story list with the configured TTL.
func (c *RedisListCache) Set(ctx context.Context, stories []Chronicle) error {
	raw, err := json.Marshal(stories)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, adminListCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached listing.
func (c *RedisListCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, adminListCacheKey).Err()
}

// noopListCache keeps the service usable without a Redis deployment.
type noopListCache struct{}

// NewNoopListCache returns a cache that always misses.
func NewNoopListCache() ListCache {
	return noopListCache{}
}

func (noopListCache) Get(context.Context) ([]Chronicle, error)      { return nil, ErrCacheMiss }
func (noopListCache) Set(context.Context, []Chronicle) error        { return nil }
func (noopListCache) Invalidate(context.Context) error              { return nil }
