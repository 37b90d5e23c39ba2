package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisClient, *RedisCache, string) {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := NewRedisClient(addr, "", 0)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("test-%s:", uuid.NewString())
	return client, NewRedisCache(client.Client, prefix), prefix
}

func TestRedisClient_HealthCheckWithoutClient(t *testing.T) {
	err := (&RedisClient{}).HealthCheck(context.Background())
	assert.EqualError(t, err, "redis client is not initialized")
}

func TestRedisCache_Integration(t *testing.T) {
	client, c, prefix := newTestCache(t)
	ctx := context.Background()
	t.Cleanup(func() { client.Client.Del(ctx, prefix+"record", prefix+"marker") })

	require.NoError(t, client.HealthCheck(ctx))

	type record struct {
		Took  string `json:"took"`
		Count int    `json:"count"`
	}

	var got record
	found, err := c.Get(ctx, "record", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "record", record{Took: "5ms", Count: 3}, 0))
	found, err = c.Get(ctx, "record", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Took: "5ms", Count: 3}, got)

	created, err := c.SetNX(ctx, "marker", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = c.SetNX(ctx, "marker", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := c.Exists(ctx, "marker")
	require.NoError(t, err)
	assert.True(t, exists)
}
