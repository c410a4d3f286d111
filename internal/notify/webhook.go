// Package notify delivers completion envelopes to client webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mediaflow/api/internal/config"
	"github.com/mediaflow/api/internal/model"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	userAgent       = "mediaflow-webhook/1.0"
)

// Notifier posts an envelope to a URL.
type Notifier interface {
	Notify(ctx context.Context, url string, env *model.Envelope)
}

// Webhook makes exactly one POST per envelope. Failures are logged and
// dropped.
type Webhook struct {
	httpClient *http.Client
	secret     string
	now        func() time.Time
}

func NewWebhook(cfg *config.WebhookConfig) *Webhook {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{
		httpClient: &http.Client{Timeout: timeout},
		secret:     cfg.Secret,
		now:        time.Now,
	}
}

// Notify sends env and logs any failure.
func (w *Webhook) Notify(ctx context.Context, url string, env *model.Envelope) {
	if err := w.Send(ctx, url, env); err != nil {
		log.Printf("Failed to deliver webhook for job %s: %v", env.JobID, err)
	}
}

// Send posts env to url and reports the failure, if any.
func (w *Webhook) Send(ctx context.Context, url string, env *model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if w.secret != "" {
		ts := strconv.FormatInt(w.now().Unix(), 10)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, Sign(w.secret, ts, body))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret, timestamp string, body []byte, signature string) bool {
	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
