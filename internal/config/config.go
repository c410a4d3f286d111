package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Media     MediaConfig
	Gateway   GatewayConfig
	Queue     QueueConfig
	Webhook   WebhookConfig
	Build     BuildConfig
	Mail      MailConfig
	Users     UsersConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	KeysPerHour int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// MediaConfig points at the ffmpeg / rembg microservice.
type MediaConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type GatewayConfig struct {
	Enabled bool
}

// Queue backends
const (
	QueueBackendMemory = "memory"
	QueueBackendAsynq  = "asynq"
)

type QueueConfig struct {
	MaxLength int // 0 means unbounded
	Backend   string
	Name      string
}

type WebhookConfig struct {
	Timeout int // seconds
	Secret  string
}

type BuildConfig struct {
	Number string
}

// MailConfig is the SMTP relay used for account emails.
type MailConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
}

type UsersConfig struct {
	BcryptCost    int
	ResetTokenTTL int // hours
	FrontendURL   string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")
	readSecret("WEBHOOK_SECRET")
	readSecret("MAIL_PASSWORD")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.keys_per_hour", "RATELIMIT_KEYS_PER_HOUR")
	_ = v.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = v.BindEnv("groq.model", "GROQ_MODEL")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("media.service_url", "MEDIA_SERVICE_URL")
	_ = v.BindEnv("media.timeout", "MEDIA_SERVICE_TIMEOUT")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("queue.max_length", "MAX_QUEUE_LENGTH")
	_ = v.BindEnv("queue.backend", "QUEUE_BACKEND")
	_ = v.BindEnv("queue.name", "QUEUE_NAME")
	_ = v.BindEnv("webhook.timeout", "WEBHOOK_TIMEOUT")
	_ = v.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	_ = v.BindEnv("build.number", "BUILD_NUMBER")
	_ = v.BindEnv("mail.server", "MAIL_SERVER")
	_ = v.BindEnv("mail.port", "MAIL_PORT")
	_ = v.BindEnv("mail.username", "MAIL_USERNAME")
	_ = v.BindEnv("mail.password", "MAIL_PASSWORD")
	_ = v.BindEnv("mail.from", "MAIL_FROM")
	_ = v.BindEnv("users.bcrypt_cost", "USERS_BCRYPT_COST")
	_ = v.BindEnv("users.reset_token_ttl", "RESET_TOKEN_TTL_HOURS")
	_ = v.BindEnv("users.frontend_url", "FRONTEND_URL")

	// Defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.keys_per_hour", 20)

	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "whisper-large-v3")

	v.SetDefault("media.service_url", "")
	v.SetDefault("media.timeout", 300)

	v.SetDefault("gateway.enabled", false)

	v.SetDefault("queue.max_length", 0)
	v.SetDefault("queue.backend", QueueBackendMemory)
	v.SetDefault("queue.name", "media")

	v.SetDefault("webhook.timeout", 30)
	v.SetDefault("build.number", "dev")

	v.SetDefault("mail.port", 587)
	v.SetDefault("users.bcrypt_cost", 10)
	v.SetDefault("users.reset_token_ttl", 24)
	v.SetDefault("users.frontend_url", "http://localhost:3000")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			KeysPerHour: v.GetInt("ratelimit.keys_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  v.GetString("groq.api_key"),
			BaseURL: v.GetString("groq.base_url"),
			Model:   v.GetString("groq.model"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Media: MediaConfig{
			ServiceURL: v.GetString("media.service_url"),
			Timeout:    v.GetInt("media.timeout"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Queue: QueueConfig{
			MaxLength: v.GetInt("queue.max_length"),
			Backend:   strings.ToLower(v.GetString("queue.backend")),
			Name:      v.GetString("queue.name"),
		},
		Webhook: WebhookConfig{
			Timeout: v.GetInt("webhook.timeout"),
			Secret:  v.GetString("webhook.secret"),
		},
		Build: BuildConfig{
			Number: v.GetString("build.number"),
		},
		Mail: MailConfig{
			Server:   v.GetString("mail.server"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
		},
		Users: UsersConfig{
			BcryptCost:    v.GetInt("users.bcrypt_cost"),
			ResetTokenTTL: v.GetInt("users.reset_token_ttl"),
			FrontendURL:   v.GetString("users.frontend_url"),
		},
	}

	if cfg.Queue.MaxLength < 0 {
		cfg.Queue.MaxLength = 0
	}

	return cfg, nil
}
