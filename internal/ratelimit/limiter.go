// Package ratelimit implements fixed-window request limits keyed by caller.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether the caller identified by key may proceed. When it
// may not, retryAfter is how long until the current window closes.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}
