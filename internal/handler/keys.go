package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/internal/middleware"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/pkg/response"
)

// KeysHandler manages the caller's API keys.
type KeysHandler struct {
	keys      *auth.KeyManager
	validator *validator.Validate
}

func NewKeysHandler(keys *auth.KeyManager, v *validator.Validate) *KeysHandler {
	return &KeysHandler{
		keys:      keys,
		validator: v,
	}
}

// Generate handles POST /keys
func (h *KeysHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateKeyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	k, err := h.keys.Generate(c.UserContext(), middleware.GetUserID(c), req.Description, req.ExpiresInDays, req.RateLimit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, model.GenerateKeyResponse{
		APIKey:    k.Key,
		ExpiresAt: k.ExpiresAt,
		RateLimit: k.RateLimit,
	})
}

// Info handles GET /keys/:key
func (h *KeysHandler) Info(c *fiber.Ctx) error {
	info, err := h.keys.Info(c.UserContext(), middleware.GetUserID(c), c.Params("key"))
	if err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return response.NotFound(c, "API key not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, info)
}

// Revoke handles DELETE /keys/:key
func (h *KeysHandler) Revoke(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.keys.Revoke(c.UserContext(), middleware.GetUserID(c), key); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return response.NotFound(c, "API key not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, model.RevokeKeyResponse{Success: true, Key: key})
}
