package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/auth"
)

// AuthHandler serves the authentication check endpoints.
type AuthHandler struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

func NewAuthHandler(verifier auth.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	tokenString := parts[1]

	if h.verifier != nil {
		if claims, err := h.verifier.Validate(tokenString); err == nil {
			c.Set("X-User-Id", claims.UserID)
			c.Set("X-User-Email", claims.Email)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	if h.jwtSecret != "" {
		if claims, err := auth.ValidateLegacyToken(tokenString, h.jwtSecret); err == nil {
			c.Set("X-User-Id", claims.UserID)
			c.Set("X-User-Email", claims.Email)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	return c.SendStatus(fiber.StatusUnauthorized)
}

// Authenticate handles GET /api/authenticate; the API key middleware has
// already admitted the caller.
func (h *AuthHandler) Authenticate(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":  "Authorized",
		"endpoint": "/authenticate",
		"code":     fiber.StatusOK,
	})
}
