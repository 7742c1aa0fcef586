// Package cache keeps rendered view data in Redis so repeated page loads skip
// the database until a mutation revalidates the path.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sport-events-backend/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient connects to Redis. It returns nil when caching is disabled
// or the server does not answer, and callers run uncached.
func NewRedisClient(cfg config.CacheConfig) *redis.Client {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, view cache disabled")
		client.Close()
		return nil
	}
	return client
}

// ViewCache stores JSON view data under a view path and a variant (filters,
// viewer). All entries of a path are dropped together by Revalidate.
type ViewCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewViewCache wraps rdb. A nil rdb yields a cache that never hits.
func NewViewCache(rdb *redis.Client, cfg config.CacheConfig) *ViewCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cache"
	}
	return &ViewCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *ViewCache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *ViewCache) key(path, variant string) string {
	sum := sha1.Sum([]byte(variant))
	return fmt.Sprintf("%s:view:%s:%x", c.prefix, path, sum[:])
}

func (c *ViewCache) indexKey(path string) string {
	return c.prefix + ":idx:" + path
}

// Get decodes the cached entry into dst and reports whether there was one.
func (c *ViewCache) Get(ctx context.Context, path, variant string, dst any) bool {
	if !c.enabled() {
		return false
	}
	data, err := c.rdb.Get(ctx, c.key(path, variant)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("path", path).Msg("View cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("View cache entry unreadable")
		return false
	}
	return true
}

// Set stores v for the path and variant.
func (c *ViewCache) Set(ctx context.Context, path, variant string, v any) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("View cache encode failed")
		return
	}

	key := c.key(path, variant)
	idx := c.indexKey(path)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl)
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, 2*c.ttl)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("View cache write failed")
	}
}

// Revalidate drops every cached entry under the given paths.
func (c *ViewCache) Revalidate(ctx context.Context, paths ...string) {
	if !c.enabled() {
		return
	}
	for _, path := range paths {
		idx := c.indexKey(path)
		keys, err := c.rdb.SMembers(ctx, idx).Result()
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("View cache revalidate failed")
			continue
		}
		if err := c.rdb.Del(ctx, append(keys, idx)...).Err(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("View cache revalidate failed")
			continue
		}
		log.Debug().Str("path", path).Int("entries", len(keys)).Msg("View cache revalidated")
	}
}
