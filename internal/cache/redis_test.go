//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests against a local Redis
// Run with: go test -v -tags=integration ./internal/cache/...

func setupTestCache(t *testing.T) *RedisCache {
	c, err := NewRedisCache(Config{Addr: "localhost:6379", DB: 15, TTL: time.Minute})
	require.NoError(t, err, "Failed to connect to test redis")
	return c
}

func TestRedisCache_SetGet(t *testing.T) {
	c := setupTestCache(t)
	defer c.Close()
	ctx := context.Background()

	key := "https://ras.football/test-page/"
	require.NoError(t, c.Invalidate(ctx, key))

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "Page should not be cached yet")

	require.NoError(t, c.Set(ctx, key, []byte("<html></html>")))

	body, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html></html>", string(body))
}
