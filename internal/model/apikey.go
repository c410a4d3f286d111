package model

import "time"

// APIKey is a stored API key record
type APIKey struct {
	Key         string    `json:"key"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsActive    bool      `json:"is_active"`
	RateLimit   int       `json:"rate_limit"`
}

// APIKeyInfo adds today's usage to a key record
type APIKeyInfo struct {
	APIKey
	TodayUsage int64 `json:"today_usage"`
}

// GenerateKeyRequest is the body of POST /keys
type GenerateKeyRequest struct {
	Description   string `json:"description" validate:"omitempty,max=200"`
	ExpiresInDays int    `json:"expires_in_days" validate:"omitempty,min=1,max=3650"`
	RateLimit     int    `json:"rate_limit" validate:"omitempty,min=1,max=1000000"`
}

// GenerateKeyResponse is returned once, on key creation
type GenerateKeyResponse struct {
	APIKey    string    `json:"api_key"`
	ExpiresAt time.Time `json:"expires_at"`
	RateLimit int       `json:"rate_limit"`
}

// RevokeKeyResponse is returned by DELETE /keys/:key
type RevokeKeyResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
}
