package handler

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/gate"
	"github.com/mediaflow/api/internal/middleware"
	"github.com/mediaflow/api/internal/task"
	"github.com/mediaflow/api/pkg/response"
)

// MediaHandler submits media jobs through the admission gate.
type MediaHandler struct {
	gate      *gate.Gate
	registry  *task.Registry
	validator *validator.Validate
}

func NewMediaHandler(g *gate.Gate, registry *task.Registry, v *validator.Validate) *MediaHandler {
	return &MediaHandler{
		gate:      g,
		registry:  registry,
		validator: v,
	}
}

// Submit returns the handler for a registered route. It validates the body
// against the route's request type, then answers with the gate's envelope.
func (h *MediaHandler) Submit(routeName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, err := h.registry.Lookup(routeName)
		if err != nil {
			return response.NotFound(c, "Route not found")
		}

		var params task.Params
		if err := json.Unmarshal(c.Body(), &params); err != nil || params == nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}

		if route.NewRequest != nil {
			req := route.NewRequest()
			if err := params.Decode(req); err != nil {
				return response.ValidationError(c, "Invalid request body", nil)
			}
			if err := h.validator.Struct(req); err != nil {
				return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
			}
		}

		env := h.gate.Admit(c.UserContext(), gate.Request{
			Route:  route.Name,
			Params: params,
			UserID: middleware.GetUserID(c),
		})
		return response.Envelope(c, env)
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
