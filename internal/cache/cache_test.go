package cache

import (
	"context"
	"testing"
	"time"

	"sport-events-backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	Titles []string `json:"titles"`
}

func newTestCache(t *testing.T) (*ViewCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewViewCache(rdb, config.CacheConfig{TTL: time.Minute, Prefix: "test"}), mr
}

func TestViewCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var got view
	assert.False(t, c.Get(ctx, "/events", "sport=all", &got))

	c.Set(ctx, "/events", "sport=all", view{Titles: []string{"Derby"}})
	require.True(t, c.Get(ctx, "/events", "sport=all", &got))
	assert.Equal(t, []string{"Derby"}, got.Titles)

	assert.False(t, c.Get(ctx, "/events", "sport=Tennis", &got))
}

func TestViewCache_Revalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "/events", "a", view{Titles: []string{"A"}})
	c.Set(ctx, "/events", "b", view{Titles: []string{"B"}})
	c.Set(ctx, "/", "trending", view{Titles: []string{"T"}})

	c.Revalidate(ctx, "/events")

	var got view
	assert.False(t, c.Get(ctx, "/events", "a", &got))
	assert.False(t, c.Get(ctx, "/events", "b", &got))
	assert.True(t, c.Get(ctx, "/", "trending", &got))
	assert.False(t, mr.Exists("test:idx:/events"))
}

func TestViewCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "/events/1", "", view{})
	mr.FastForward(2 * time.Minute)

	var got view
	assert.False(t, c.Get(ctx, "/events/1", "", &got))
}

func TestViewCache_NilIsPassThrough(t *testing.T) {
	var nilCache *ViewCache
	disabled := NewViewCache(nil, config.CacheConfig{})
	ctx := context.Background()

	for _, c := range []*ViewCache{nilCache, disabled} {
		c.Set(ctx, "/", "", view{})
		c.Revalidate(ctx, "/")
		var got view
		assert.False(t, c.Get(ctx, "/", "", &got))
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	assert.Nil(t, NewRedisClient(config.CacheConfig{Enabled: false, Addr: "localhost:6379"}))
	assert.Nil(t, NewRedisClient(config.CacheConfig{Enabled: true, Addr: "127.0.0.1:1"}))
}
