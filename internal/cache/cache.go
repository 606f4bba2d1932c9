// Package cache keeps reference image payloads in Redis so painting listings
// do not reload large blobs from the database on every request.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached payload lives.
const DefaultTTL = time.Hour

// ReferenceCache stores reference image payloads by id.
type ReferenceCache interface {
	// GetMany returns the cached payloads and the ids that were not cached.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, []uuid.UUID, error)
	SetMany(ctx context.Context, data map[uuid.UUID]string) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// LoadFunc reads payloads from the source of truth.
type LoadFunc func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

// Load is a read-through lookup: cached ids come from c, the rest from load,
// which are then written back. Cache failures fall back to load.
func Load(ctx context.Context, c ReferenceCache, ids []uuid.UUID, load LoadFunc) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	found, missing, err := c.GetMany(ctx, ids)
	if err != nil {
		found, missing = map[uuid.UUID]string{}, ids
	}
	if len(missing) == 0 {
		return found, nil
	}

	loaded, err := load(ctx, missing)
	if err != nil {
		return nil, err
	}
	_ = c.SetMany(ctx, loaded)

	for id, data := range loaded {
		found[id] = data
	}
	return found, nil
}

// RedisCache is a ReferenceCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache from parsed Redis options.
func NewRedisCache(opts *redis.Options, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "painting"
	}
	return &RedisCache{client: redis.NewClient(opts), prefix: prefix, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL.
func NewRedisCacheFromURL(url, prefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisCache(opts, prefix, ttl), nil
}

func (c *RedisCache) key(id uuid.UUID) string {
	return c.prefix + ":ref:" + id.String()
}

// Ping verifies connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, []uuid.UUID, error) {
	found := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read reference cache: %w", err)
	}

	var missing []uuid.UUID
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		found[ids[i]] = s
	}
	return found, missing, nil
}

func (c *RedisCache) SetMany(ctx context.Context, data map[uuid.UUID]string) error {
	if len(data) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, payload := range data {
		pipe.Set(ctx, c.key(id), payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write reference cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate reference cache: %w", err)
	}
	return nil
}

// Noop is a ReferenceCache that never holds anything.
type Noop struct{}

func (Noop) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, []uuid.UUID, error) {
	return map[uuid.UUID]string{}, ids, nil
}

func (Noop) SetMany(context.Context, map[uuid.UUID]string) error { return nil }

func (Noop) Invalidate(context.Context, uuid.UUID) error { return nil }
