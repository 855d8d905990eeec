package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_LimitsWithinWindow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis limiter test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	l := NewRedis(rdb, 3, time.Minute)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, l.prefix+key) })

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)
}
