package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared by every replica pointing at the
// same redis. The window starts on the first hit for a key.
type Redis struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(rdb redis.Cmdable, limit int, window time.Duration) *Redis {
	return &Redis{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "identity:ratelimit:",
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	// NX keeps the window anchored to the first hit
	pipe.ExpireNX(ctx, k, r.window)
	ttl := pipe.PTTL(ctx, k)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if incr.Val() <= int64(r.limit) {
		return true, 0, nil
	}

	retry := ttl.Val()
	if retry < 0 {
		retry = r.window
	}
	return false, retry, nil
}

// Fallback uses primary and switches to secondary for any call where the
// primary errors, so a redis outage degrades to per-process limits instead
// of failing requests.
type Fallback struct {
	Primary   Limiter
	Secondary Limiter
	OnError   func(ctx context.Context, err error)
}

func (f Fallback) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ok, retry, err := f.Primary.Allow(ctx, key)
	if err == nil {
		return ok, retry, nil
	}

	if f.OnError != nil {
		f.OnError(ctx, err)
	}
	return f.Secondary.Allow(ctx, key)
}
