package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mediaflow/api/internal/auth"
	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/config"
	"github.com/mediaflow/api/internal/gate"
	"github.com/mediaflow/api/internal/notify"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/server"
	"github.com/mediaflow/api/internal/service"
	"github.com/mediaflow/api/internal/task"
	ws "github.com/mediaflow/api/internal/websocket"
	"github.com/mediaflow/api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	// External clients; unconfigured ones fall back to mock results
	var transcriber client.Transcriber
	groqClient := client.NewGroqClient(&cfg.Groq)
	if groqClient.IsConfigured() {
		transcriber = groqClient
	} else {
		log.Println("Info: Groq not configured, using mock transcriptions")
	}

	var mediaProcessor client.MediaProcessor
	mediaClient := client.NewMediaClient(&cfg.Media)
	if mediaClient.IsConfigured() {
		mediaProcessor = mediaClient
	} else {
		log.Println("Info: media service not configured, using mock outputs")
	}

	var store client.ObjectStore
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			store = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, subtitles returned inline")
	}

	var mailer client.Mailer
	smtpMailer := client.NewSMTPMailer(&cfg.Mail)
	if smtpMailer.IsConfigured() {
		mailer = smtpMailer
	} else {
		log.Println("Info: mail server not configured, account emails disabled")
	}

	var verifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
			verifier = jwksVerifier
		}
	}

	registry := task.NewRegistry()
	if err := service.RegisterRoutes(registry,
		service.NewTranscriptionService(transcriber, store),
		service.NewMediaService(mediaProcessor),
	); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	pid := os.Getpid()
	notifier := notify.NewWebhook(&cfg.Webhook)

	g, gctx := errgroup.WithContext(ctx)

	var q queue.Queue
	switch cfg.Queue.Backend {
	case config.QueueBackendAsynq:
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()

		aq := queue.NewAsynqQueue(asynq.NewClient(redisOpt), inspector, cfg.Queue.Name, cfg.Queue.MaxLength)
		defer aq.Close()
		q = aq

		processor := worker.NewProcessor(registry, q, notifier, hub, pid, cfg.Build.Number)
		srv := worker.NewAsynqServer(redisOpt, cfg.Queue.Name, cfg.Server.LogLevel)
		if err := srv.Start(worker.NewAsynqMux(processor)); err != nil {
			log.Fatalf("Failed to start asynq worker: %v", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})

	default:
		mq := queue.NewMemoryQueue(cfg.Queue.MaxLength)
		q = mq

		processor := worker.NewProcessor(registry, q, notifier, hub, pid, cfg.Build.Number)
		loop := worker.NewLoop(mq, processor)
		loop.Start()
		g.Go(func() error {
			<-gctx.Done()
			_ = mq.Close()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			return loop.Stop(stopCtx)
		})
	}

	log.Printf("Queue %s ready (backend=%s, max_length=%d)", q.ID(), cfg.Queue.Backend, q.Capacity())

	app := server.New(server.Deps{
		Config:   cfg,
		Redis:    redisClient,
		Registry: registry,
		Gate:     gate.New(registry, q, pid, cfg.Build.Number),
		Queue:    q,
		Hub:      hub,
		Verifier: verifier,
		Mailer:   mailer,
		Services: map[string]bool{
			"groq":  transcriber != nil,
			"media": mediaProcessor != nil,
			"r2":    store != nil,
			"mail":  mailer != nil,
			"auth":  verifier != nil || cfg.JWT.Secret != "",
		},
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Printf("Server starting on %s", addr)
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
