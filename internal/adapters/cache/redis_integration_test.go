//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/okian/tagtrail/internal/adapters/cache"
)

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := cache.DialRedis(ctx, endpoint, 0)
	require.NoError(t, err)
	c := cache.NewRedisCache(client, "tagtrail:test:")
	t.Cleanup(func() { _ = c.Close() })

	type summary struct {
		UID   string `json:"uid"`
		Token int64  `json:"token"`
	}

	require.NoError(t, c.Set(ctx, "summary:uid:a1b2", summary{UID: "a1b2", Token: 3}, time.Second))

	has, err := c.Has(ctx, "summary:uid:a1b2")
	require.NoError(t, err)
	require.True(t, has)

	var got summary
	ok, err := c.Get(ctx, "summary:uid:a1b2", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, summary{UID: "a1b2", Token: 3}, got)

	require.Eventually(t, func() bool {
		has, err := c.Has(ctx, "summary:uid:a1b2")
		return err == nil && !has
	}, 5*time.Second, 100*time.Millisecond)

	ok, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}
