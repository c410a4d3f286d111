package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mediaflow/api/internal/config"
)

// MediaProcessor is the ffmpeg / background-removal microservice.
type MediaProcessor interface {
	Crop(ctx context.Context, req *CropRequest) (*MediaResponse, error)
	Combine(ctx context.Context, req *CombineRequest) (*MediaResponse, error)
	RemoveBackground(ctx context.Context, req *RemoveBackgroundRequest) (*MediaResponse, error)
	HealthCheck(ctx context.Context) error
}

// MediaClient implements MediaProcessor over HTTP.
type MediaClient struct {
	httpClient *http.Client
	baseURL    string
}

// CropRequest cuts [Start, Start+Duration) out of the input. Times use HH:MM:SS.
type CropRequest struct {
	InputURL  string `json:"input_url"`
	Start     string `json:"start"`
	Duration  int    `json:"duration"`
	OutputKey string `json:"output_key"`
}

// CombineRequest concatenates inputs in order.
type CombineRequest struct {
	InputURLs []string `json:"input_urls"`
	OutputKey string   `json:"output_key"`
}

type RemoveBackgroundRequest struct {
	InputURL  string `json:"input_url"`
	Format    string `json:"format"`
	OutputKey string `json:"output_key"`
}

// MediaResponse is the common answer of every media endpoint.
type MediaResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration,omitempty"`
	Size      int64   `json:"size,omitempty"`
}

func NewMediaClient(cfg *config.MediaConfig) *MediaClient {
	return &MediaClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

func (c *MediaClient) Crop(ctx context.Context, req *CropRequest) (*MediaResponse, error) {
	var result MediaResponse
	if err := c.post(ctx, "/crop", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *MediaClient) Combine(ctx context.Context, req *CombineRequest) (*MediaResponse, error) {
	var result MediaResponse
	if err := c.post(ctx, "/combine", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *MediaClient) RemoveBackground(ctx context.Context, req *RemoveBackgroundRequest) (*MediaResponse, error) {
	var result MediaResponse
	if err := c.post(ctx, "/remove-background", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the media service is available
func (c *MediaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *MediaClient) post(ctx context.Context, endpoint string, body any, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("media service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *MediaClient) IsConfigured() bool {
	return c.baseURL != ""
}
