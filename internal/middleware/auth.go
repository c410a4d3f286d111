package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/pkg/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware accepts JWKS-verified tokens and, when jwtSecret is set,
// legacy HMAC tokens. Either may be absent.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing or invalid authorization header")
		}

		if m.verifier != nil {
			if claims, err := m.verifier.Validate(tokenString); err == nil {
				c.Locals("userId", claims.UserID)
				c.Locals("email", claims.Email)
				return c.Next()
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			c.Locals("userId", claims.UserID)
			c.Locals("email", claims.Email)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}
