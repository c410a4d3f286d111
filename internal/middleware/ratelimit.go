package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/api/pkg/response"
)

// RateLimiter is a fixed-window per-user limiter backed by Redis INCR.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit allows maxRequests per window for each authenticated user.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := c.UserContext()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis down: fail open.
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
		return c.Next()
	}
}

// KeysLimit limits the key management endpoints per hour.
func (rl *RateLimiter) KeysLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("keys", maxPerHour, time.Hour)
}
