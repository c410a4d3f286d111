// Package server assembles the fiber application.
package server

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/config"
	"github.com/mediaflow/api/internal/gate"
	"github.com/mediaflow/api/internal/handler"
	"github.com/mediaflow/api/internal/middleware"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/service"
	"github.com/mediaflow/api/internal/task"
	ws "github.com/mediaflow/api/internal/websocket"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	Redis    *redis.Client
	Registry *task.Registry
	Gate     *gate.Gate
	Queue    queue.Queue
	Hub      *ws.Hub
	Verifier auth.TokenVerifier
	// Mailer may be nil, in which case account emails are skipped.
	Mailer client.Mailer
	// Services reports collaborator availability on /health.
	Services map[string]bool
}

// New builds the application with every route registered.
func New(d Deps) *fiber.App {
	cfg := d.Config
	validate := validator.New()

	keys := auth.NewKeyManager(d.Redis)
	mediaHandler := handler.NewMediaHandler(d.Gate, d.Registry, validate)
	keysHandler := handler.NewKeysHandler(keys, validate)
	authHandler := handler.NewAuthHandler(d.Verifier, cfg.JWT.Secret)
	usersHandler := handler.NewUsersHandler(
		auth.NewUserStore(d.Redis, cfg.Users.BcryptCost, time.Duration(cfg.Users.ResetTokenTTL)*time.Hour),
		service.NewEmailService(d.Mailer, cfg.Users.FrontendURL),
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.Expiration)*time.Hour,
		validate,
	)
	rateLimiter := middleware.NewRateLimiter(d.Redis)

	var apiAuth, userAuth fiber.Handler
	if cfg.Gateway.Enabled {
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
		userAuth = apiAuth
	} else {
		apiAuth = middleware.APIKeyMiddleware(keys)
		userAuth = middleware.NewAuthMiddleware(d.Verifier, cfg.JWT.Secret).Authenticate()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		queueInfo := fiber.Map{
			"id":       d.Queue.ID(),
			"capacity": d.Queue.Capacity(),
		}
		if n, err := d.Queue.Len(c.UserContext()); err == nil {
			queueInfo["length"] = n
		}
		services := fiber.Map{"redis": pingRedis(c.UserContext(), d.Redis)}
		for name, ok := range d.Services {
			services[name] = ok
		}
		return c.JSON(fiber.Map{
			"status":       "ok",
			"build_number": cfg.Build.Number,
			"queue":        queueInfo,
			"services":     services,
		})
	})

	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuth)
	api.Get("/authenticate", authHandler.Authenticate)
	for _, route := range d.Registry.Routes() {
		api.Post(route.Name, mediaHandler.Submit(route.Name))
	}

	users := app.Group("/users")
	users.Post("/register", usersHandler.Register)
	users.Post("/login", usersHandler.Login)
	users.Post("/forgot-password", usersHandler.ForgotPassword)
	users.Post("/reset-password/:token", usersHandler.ResetPassword)
	users.Get("/me", userAuth, usersHandler.Me)
	users.Put("/:id", userAuth, usersHandler.Update)
	users.Delete("/:id", userAuth, usersHandler.Delete)

	keysGroup := app.Group("/keys", userAuth, rateLimiter.KeysLimit(cfg.RateLimit.KeysPerHour))
	keysGroup.Post("/", keysHandler.Generate)
	keysGroup.Get("/:key", keysHandler.Info)
	keysGroup.Delete("/:key", keysHandler.Revoke)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		d.Hub.HandleConnection(c, c.Params("jobId"))
	}))

	return app
}

func pingRedis(ctx context.Context, rdb *redis.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err() == nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
