package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, window: window}
}

// Limit wraps a handler with a fixed-window counter keyed on the
// device identifier when present, falling back to the caller IP. A
// Redis failure lets the request through: throttling must never take
// the voting flow down with it.
func (r *RateLimiter) Limit(scope string, max int, next func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		id := e.Request.Header.Get("X-Device-Id")
		if id == "" {
			id = e.RealIP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", scope, id)
		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(ctx, key, r.window)
			}
			if count > int64(max) {
				return e.JSON(http.StatusTooManyRequests, map[string]string{
					"error":  "Rate limit exceeded. Please try again later.",
					"reason": "rate_limited",
				})
			}
		}

		return next(e)
	}
}
