// Package ratelimit enforces per-user quotas on expensive endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter reports whether key may perform one more call.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Counter increments a counter that expires after window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter with INCR + EXPIRE in one transaction.
type RedisCounter struct {
	client redis.Cmdable
}

// NewRedisCounter wraps a go-redis client.
func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr bumps key and sets its expiry to window in one round trip.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// FixedWindow allows limit calls per key per window. Counter failures let the
// call through.
type FixedWindow struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
	logger  *zap.Logger
	now     func() time.Time
}

// NewFixedWindow builds a limiter. A nil counter or non-positive limit
// disables limiting.
func NewFixedWindow(counter Counter, prefix string, limit int, window time.Duration, logger *zap.Logger) *FixedWindow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixedWindow{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
	}
}

// Allow reports whether key is still under the limit for the current window.
// Counter errors let the request through.
func (l *FixedWindow) Allow(ctx context.Context, key string) bool {
	if l == nil || l.counter == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	bucket := l.now().UnixNano() / int64(l.window)
	count, err := l.counter.Incr(ctx, fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket), l.window)
	if err != nil {
		l.logger.Warn("rate limiter unavailable; allowing request", zap.String("key", key), zap.Error(err))
		return true
	}
	return count <= int64(l.limit)
}
