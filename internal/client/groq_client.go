package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mediaflow/api/internal/config"
)

// Transcriber turns a media URL into timed text.
type Transcriber interface {
	Transcribe(ctx context.Context, req *TranscriptionRequest) (*Transcription, error)
}

// GroqClient calls Groq's OpenAI-compatible Whisper endpoint.
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type TranscriptionRequest struct {
	MediaURL string
	Language string
}

// Segment is one timed span of a transcription, times in seconds.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is Groq's verbose_json response.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Transcribe asks Groq to fetch and transcribe the media at req.MediaURL.
func (c *GroqClient) Transcribe(ctx context.Context, req *TranscriptionRequest) (*Transcription, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"model":           c.model,
		"url":             req.MediaURL,
		"response_format": "verbose_json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result Transcription
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}
