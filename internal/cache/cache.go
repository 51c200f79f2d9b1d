package cache

import (
	"context"
	"fmt"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/goccy/go-json"
	"github.com/jon4hz/catalogsync/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// PrefixedCache stores JSON encoded values of type T under a key prefix.
type PrefixedCache[T any] struct {
	cache  *cache.Cache[[]byte]
	prefix string
}

// NewPrefixedCache creates a new prefixed cache wrapper.
func NewPrefixedCache[T any](c *cache.Cache[[]byte], prefix string) *PrefixedCache[T] {
	return &PrefixedCache[T]{
		cache:  c,
		prefix: prefix,
	}
}

func (p *PrefixedCache[T]) key(key any) string {
	return p.prefix + fmt.Sprintf("%v", key)
}

// Get retrieves a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Get(ctx context.Context, key any) (T, error) {
	data, err := p.cache.Get(ctx, p.key(key))
	if err != nil {
		return *new(T), err
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return *new(T), err
	}
	return result, nil
}

// Set stores a value in the cache with the prefixed key.
func (p *PrefixedCache[T]) Set(ctx context.Context, key any, object T, options ...store.Option) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	return p.cache.Set(ctx, p.key(key), data, options...)
}

// Delete removes a value from the cache with the prefixed key.
func (p *PrefixedCache[T]) Delete(ctx context.Context, key any) error {
	return p.cache.Delete(ctx, p.key(key))
}

// GetType returns the cache type.
func (p *PrefixedCache[T]) GetType() string {
	return p.cache.GetType()
}

// GetStats returns the cache statistics.
func (p *PrefixedCache[T]) GetStats() *codec.Stats {
	return p.cache.GetCodec().GetStats()
}

func newCacheInstanceByType(cfg *config.CacheConfig) *cache.Cache[[]byte] {
	if cfg != nil && cfg.Type == config.CacheTypeRedis {
		return newRedisCache[[]byte](cfg)
	}
	return newMemoryCache[[]byte]()
}

func newMemoryCache[T any]() *cache.Cache[T] {
	// entries live for the run; Reset drops them
	gocacheClient := gocache.New(gocache.NoExpiration, gocache.NoExpiration)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[T](gocacheStore)
}

func newRedisCache[T any](cfg *config.CacheConfig) *cache.Cache[T] {
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	redisStore := redis_store.NewRedis(redisClient)
	return cache.New[T](redisStore)
}
