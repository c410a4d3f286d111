package handler

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/internal/middleware"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/service"
	"github.com/mediaflow/api/pkg/response"
)

// UsersHandler serves account registration, login and password recovery.
type UsersHandler struct {
	users     *auth.UserStore
	email     *service.EmailService
	jwtSecret string
	tokenTTL  time.Duration
	validator *validator.Validate
}

func NewUsersHandler(users *auth.UserStore, email *service.EmailService, jwtSecret string, tokenTTL time.Duration, v *validator.Validate) *UsersHandler {
	return &UsersHandler{
		users:     users,
		email:     email,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		validator: v,
	}
}

// bind parses and validates the body into req. When it reports false the
// error response has already been written.
func (h *UsersHandler) bind(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return false, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return true, nil
}

// Register handles POST /users/register
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterUserRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	u, err := h.users.Create(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return response.Conflict(c, "Email or username already registered")
		}
		log.Printf("Failed to register user: %v", err)
		return response.ServiceError(c, "Failed to register user")
	}

	if err := h.email.SendWelcome(c.UserContext(), u.Email, u.Username); err != nil {
		log.Printf("Warning: %v", err)
	}
	return response.Created(c, u)
}

// Login handles POST /users/login
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req model.LoginRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	u, err := h.users.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return response.Unauthorized(c, "Incorrect email or password")
		}
		log.Printf("Failed to authenticate user: %v", err)
		return response.ServiceError(c, "Failed to authenticate user")
	}

	token, err := auth.GenerateLegacyToken(h.jwtSecret, u.ID, u.Email, h.tokenTTL)
	if err != nil {
		log.Printf("Failed to issue token: %v", err)
		return response.ServiceError(c, "Failed to issue token")
	}
	return response.OK(c, model.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokenTTL / time.Second),
	})
}

// Me handles GET /users/me
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	u, err := h.users.Get(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, u)
}

// Update handles PUT /users/:id
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id != middleware.GetUserID(c) {
		return response.Forbidden(c, "Not enough permissions")
	}

	var req model.UpdateUserRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	u, err := h.users.Update(c.UserContext(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			return response.NotFound(c, "User not found")
		case errors.Is(err, auth.ErrUserExists):
			return response.Conflict(c, "Email or username already registered")
		default:
			log.Printf("Failed to update user %s: %v", id, err)
			return response.ServiceError(c, "Failed to update user")
		}
	}
	return response.OK(c, u)
}

// Delete handles DELETE /users/:id
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id != middleware.GetUserID(c) {
		return response.Forbidden(c, "Not enough permissions")
	}

	if err := h.users.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		log.Printf("Failed to delete user %s: %v", id, err)
		return response.ServiceError(c, "Failed to delete user")
	}
	return response.OK(c, model.MessageResponse{Message: "User deleted successfully"})
}

// ForgotPassword handles POST /users/forgot-password
func (h *UsersHandler) ForgotPassword(c *fiber.Ctx) error {
	var req model.ForgotPasswordRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	token, err := h.users.CreateResetToken(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return response.NotFound(c, "User not found")
		}
		log.Printf("Failed to create reset token: %v", err)
		return response.ServiceError(c, "Failed to create reset token")
	}

	if err := h.email.SendPasswordReset(c.UserContext(), req.Email, token); err != nil {
		log.Printf("Failed to send password reset email: %v", err)
		return response.ServiceError(c, "Failed to send password reset email")
	}
	return response.OK(c, model.MessageResponse{Message: "Password reset email sent"})
}

// ResetPassword handles POST /users/reset-password/:token
func (h *UsersHandler) ResetPassword(c *fiber.Ctx) error {
	var req model.ResetPasswordRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	if err := h.users.ResetPassword(c.UserContext(), c.Params("token"), req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			return response.ValidationError(c, "Invalid or expired reset token", nil)
		}
		log.Printf("Failed to reset password: %v", err)
		return response.ServiceError(c, "Failed to reset password")
	}
	return response.OK(c, model.MessageResponse{Message: "Password reset successful"})
}
