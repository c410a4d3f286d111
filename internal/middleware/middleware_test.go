package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/api/internal/auth"
)

const testSecret = "middleware-test-secret"

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func whoAmI(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c))
}

func do(t *testing.T, app *fiber.App, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAPIKeyMiddleware(t *testing.T) {
	rdb := newRedis(t)
	keys := auth.NewKeyManager(rdb)
	k, err := keys.Generate(context.Background(), "user-1", "", 30, 2)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/", APIKeyMiddleware(keys), whoAmI)

	assert.Equal(t, http.StatusUnauthorized, do(t, app, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderAPIKey: "bogus"}).StatusCode)

	resp := do(t, app, map[string]string{HeaderAPIKey: k.Key})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do(t, app, map[string]string{HeaderAPIKey: k.Key}).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(t, app, map[string]string{HeaderAPIKey: k.Key}).StatusCode)

	require.NoError(t, keys.Revoke(context.Background(), "user-1", k.Key))
	assert.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{HeaderAPIKey: k.Key}).StatusCode)
}

func TestAuthMiddlewareLegacy(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuthMiddleware(nil, testSecret).Authenticate(), whoAmI)

	token, err := auth.GenerateLegacyToken(testSecret, "user-9", "u@example.com", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(t, app, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{"Authorization": "Bearer nope"}).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{"Authorization": token}).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, app, map[string]string{"Authorization": "Bearer " + token}).StatusCode)
}

func TestAuthMiddlewareNotConfigured(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuthMiddleware(nil, "").Authenticate(), whoAmI)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, map[string]string{"Authorization": "Bearer x"}).StatusCode)
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", GatewayAuthMiddleware(), whoAmI)

	assert.Equal(t, http.StatusUnauthorized, do(t, app, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, app, map[string]string{"X-User-Id": "gw-user"}).StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(newRedis(t))

	app := fiber.New()
	app.Get("/", GatewayAuthMiddleware(), rl.KeysLimit(2), whoAmI)

	h := map[string]string{"X-User-Id": "u"}
	assert.Equal(t, http.StatusOK, do(t, app, h).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, app, h).StatusCode)

	resp := do(t, app, h)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Limits are per user.
	assert.Equal(t, http.StatusOK, do(t, app, map[string]string{"X-User-Id": "other"}).StatusCode)
}
