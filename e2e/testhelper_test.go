package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/config"
	"github.com/mediaflow/api/internal/gate"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/notify"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/server"
	"github.com/mediaflow/api/internal/service"
	"github.com/mediaflow/api/internal/task"
	ws "github.com/mediaflow/api/internal/websocket"
	"github.com/mediaflow/api/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
)

type options struct {
	maxQueueLength int
	// startWorker=false keeps admitted jobs in the queue.
	startWorker bool
}

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	queue   *queue.MemoryQueue
	keys    *auth.KeyManager
	apiKey  string
	webhook *webhookReceiver
	mail    *mailbox
}

// setupApp builds the real application with mock media collaborators,
// miniredis and an in-memory queue.
func setupApp(t *testing.T, opts options) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", LogLevel: "info"},
		JWT:       config.JWTConfig{Secret: testJWTSecret},
		RateLimit: config.RateLimitConfig{KeysPerHour: 10000},
		Queue:     config.QueueConfig{MaxLength: opts.maxQueueLength, Backend: config.QueueBackendMemory},
		Webhook:   config.WebhookConfig{Timeout: 5},
		Build:     config.BuildConfig{Number: "e2e"},
		Users:     config.UsersConfig{BcryptCost: 4, ResetTokenTTL: 1, FrontendURL: "https://app.test"},
	}

	registry := task.NewRegistry()
	if err := service.RegisterRoutes(registry, service.NewTranscriptionService(nil, nil), service.NewMediaService(nil)); err != nil {
		t.Fatalf("failed to register routes: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	q := queue.NewMemoryQueue(cfg.Queue.MaxLength)
	if opts.startWorker {
		loop := worker.NewLoop(q, worker.NewProcessor(registry, q, notify.NewWebhook(&cfg.Webhook), hub, 1, cfg.Build.Number))
		loop.Start()
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = loop.Stop(ctx)
		})
	}

	mail := &mailbox{}
	app := server.New(server.Deps{
		Config:   cfg,
		Redis:    redisClient,
		Registry: registry,
		Gate:     gate.New(registry, q, 1, cfg.Build.Number),
		Queue:    q,
		Hub:      hub,
		Mailer:   mail,
		Services: map[string]bool{"groq": false, "media": false},
	})

	keys := auth.NewKeyManager(redisClient)
	k, err := keys.Generate(context.Background(), testUserID, "e2e", 1, 10000)
	if err != nil {
		t.Fatalf("failed to create api key: %v", err)
	}

	return &testApp{
		app:     app,
		queue:   q,
		keys:    keys,
		apiKey:  k.Key,
		webhook: newWebhookReceiver(t),
		mail:    mail,
	}
}

// mailbox records account emails instead of sending them.
type mailbox struct {
	mu   sync.Mutex
	sent []client.MailMessage
}

func (m *mailbox) Send(ctx context.Context, msg *client.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *msg)
	return nil
}

func (m *mailbox) messages() []client.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]client.MailMessage(nil), m.sent...)
}

// webhookReceiver records envelopes posted to it.
type webhookReceiver struct {
	srv       *httptest.Server
	mu        sync.Mutex
	envelopes []model.Envelope
}

func newWebhookReceiver(t *testing.T) *webhookReceiver {
	t.Helper()
	r := &webhookReceiver{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var env model.Envelope
		if err := json.NewDecoder(req.Body).Decode(&env); err == nil {
			r.mu.Lock()
			r.envelopes = append(r.envelopes, env)
			r.mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *webhookReceiver) URL() string { return r.srv.URL + "/hook" }

func (r *webhookReceiver) received() []model.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Envelope(nil), r.envelopes...)
}

// waitForWebhooks polls until n envelopes arrived or the deadline passes.
func (r *webhookReceiver) waitForWebhooks(t *testing.T, n int) []model.Envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.received(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d webhook deliveries, got %d", n, len(r.received()))
	return nil
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateLegacyToken(testJWTSecret, testUserID, "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doKeyRequest performs a request authenticated with the test API key.
func (ta *testApp) doKeyRequest(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(ta.app, method, path, body, map[string]string{"X-API-Key": ta.apiKey})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// doAuthRequest performs a JWT-authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
