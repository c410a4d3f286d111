package middleware

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/pkg/response"
)

const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware admits requests carrying a valid, active, unexpired key
// that is still under its daily quota, and counts the request.
func APIKeyMiddleware(keys *auth.KeyManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderAPIKey)
		if key == "" {
			return response.Unauthorized(c, "Missing API key")
		}

		ctx := c.UserContext()
		k, err := keys.Validate(ctx, key)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrKeyNotFound):
				return response.Unauthorized(c, "Invalid API key")
			case errors.Is(err, auth.ErrKeyInactive):
				return response.Unauthorized(c, "API key has been revoked")
			case errors.Is(err, auth.ErrKeyExpired):
				return response.Unauthorized(c, "API key has expired")
			default:
				log.Printf("Failed to validate API key: %v", err)
				return response.ServiceError(c, "Failed to validate API key")
			}
		}

		ok, err := keys.WithinRateLimit(ctx, k)
		if err != nil {
			log.Printf("Failed to check API key usage: %v", err)
			return response.ServiceError(c, "Failed to validate API key")
		}
		if !ok {
			c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", k.RateLimit))
			c.Set("X-RateLimit-Remaining", "0")
			return response.RateLimited(c)
		}

		used, err := keys.LogUsage(ctx, key)
		if err != nil {
			log.Printf("Failed to log API key usage: %v", err)
		} else {
			c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", k.RateLimit))
			c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(int64(k.RateLimit)-used, 0)))
		}

		c.Locals("userId", k.UserID)
		c.Locals("apiKey", key)
		return c.Next()
	}
}
