package ratelimitinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verso-labs/companion/pkg/logx"
	"github.com/verso-labs/companion/pkg/ratelimit"
)

// RedisLimiter is a fixed-window counter: INCR a per-identifier key
// scoped to the current window, EXPIRE it on first hit, deny once the
// count passes the budget.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// NewRedisLimiter creates a limiter allowing requests per window
func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) ratelimit.Limiter {
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

// Allow consumes one slot for the identifier. Redis being unreachable
// fails open: admission control must not take chat down with it.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	windowID := time.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, windowID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logx.Warnf("rate limiter unavailable, failing open: %v", err)
		return true, nil
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			logx.Warnf("failed to set rate limit window expiry: %v", err)
		}
	}

	return count <= int64(l.requests), nil
}
