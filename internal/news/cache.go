package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	units "github.com/labstack/gommon/bytes"
	"github.com/redis/go-redis/v9"
)

// Cache stores encoded feeds. A miss is reported as redis.Nil by every
// implementation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Name() string
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// LocalCache is an in-process cache backed by freecache.
type LocalCache struct {
	cache *freecache.Cache
}

const DefaultLocalCacheSize = 32 * units.MiB

func NewLocalCache(size int64) *LocalCache {
	if size <= 0 {
		size = DefaultLocalCacheSize
	}
	return &LocalCache{cache: freecache.NewCache(int(size))}
}

func (l *LocalCache) Name() string { return "local" }

func (l *LocalCache) Get(_ context.Context, key string) ([]byte, error) {
	val, err := l.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, fmt.Errorf("key %s not found %w", key, redis.Nil)
	}
	return val, err
}

func (l *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int(ttl / time.Second)
	if ttl > 0 && seconds == 0 {
		seconds = 1
	}
	return l.cache.Set([]byte(key), value, seconds)
}

func (l *LocalCache) Delete(_ context.Context, key string) error {
	l.cache.Del([]byte(key))
	return nil
}

// RedisCache stores feeds in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to rawURL, e.g. redis://localhost:6379/0, and pings it.
func NewRedisCache(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("key %s not found %w", key, err)
	}
	return val, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
