package model

import "time"

// User is an account that can log in and own API keys
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	FirstName         string    `json:"first_name,omitempty"`
	LastName          string    `json:"last_name,omitempty"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	Bio               string    `json:"bio,omitempty"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	IsActive          bool      `json:"is_active"`
	IsVerified        bool      `json:"is_verified"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RegisterUserRequest is the body of POST /users/register
type RegisterUserRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Username          string `json:"username" validate:"required,min=3,max=64"`
	Password          string `json:"password" validate:"required,min=8,max=72"`
	FirstName         string `json:"first_name" validate:"omitempty,max=100"`
	LastName          string `json:"last_name" validate:"omitempty,max=100"`
	PhoneNumber       string `json:"phone_number" validate:"omitempty,max=32"`
	Bio               string `json:"bio" validate:"omitempty,max=1000"`
	ProfilePictureURL string `json:"profile_picture_url" validate:"omitempty,url"`
}

// UpdateUserRequest is the body of PUT /users/:id. Nil fields are left as is.
type UpdateUserRequest struct {
	Email             *string `json:"email" validate:"omitempty,email"`
	Username          *string `json:"username" validate:"omitempty,min=3,max=64"`
	Password          *string `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName         *string `json:"first_name" validate:"omitempty,max=100"`
	LastName          *string `json:"last_name" validate:"omitempty,max=100"`
	PhoneNumber       *string `json:"phone_number" validate:"omitempty,max=32"`
	Bio               *string `json:"bio" validate:"omitempty,max=1000"`
	ProfilePictureURL *string `json:"profile_picture_url" validate:"omitempty,url"`
}

// LoginRequest is the body of POST /users/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a bearer token for the /keys and /users routes
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"` // seconds
}

// ForgotPasswordRequest is the body of POST /users/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of POST /users/reset-password/:token
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
