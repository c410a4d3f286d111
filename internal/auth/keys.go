package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediaflow/api/internal/model"
)

var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyInactive = errors.New("api key revoked")
	ErrKeyExpired  = errors.New("api key expired")
)

const (
	DefaultKeyExpiryDays = 365
	DefaultKeyRateLimit  = 100

	keyPrefix      = "apikey:"
	usagePrefix    = "apikey:usage:"
	userKeysPrefix = "apikey:user:"
	usageTTL       = 48 * time.Hour
)

// KeyManager stores API keys and their daily usage in Redis.
type KeyManager struct {
	redis *redis.Client
	now   func() time.Time
}

func NewKeyManager(redisClient *redis.Client) *KeyManager {
	return &KeyManager{redis: redisClient, now: time.Now}
}

// Generate creates a new active key for userID.
func (m *KeyManager) Generate(ctx context.Context, userID, description string, expiresInDays, rateLimit int) (*model.APIKey, error) {
	if expiresInDays <= 0 {
		expiresInDays = DefaultKeyExpiryDays
	}
	if rateLimit <= 0 {
		rateLimit = DefaultKeyRateLimit
	}

	key, err := newKey()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	k := &model.APIKey{
		Key:         key,
		UserID:      userID,
		Description: description,
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, expiresInDays),
		IsActive:    true,
		RateLimit:   rateLimit,
	}

	pipe := m.redis.TxPipeline()
	pipe.HSet(ctx, keyPrefix+key, map[string]any{
		"user_id":     k.UserID,
		"description": k.Description,
		"created_at":  k.CreatedAt.Format(time.RFC3339),
		"expires_at":  k.ExpiresAt.Format(time.RFC3339),
		"is_active":   "1",
		"rate_limit":  k.RateLimit,
	})
	pipe.SAdd(ctx, userKeysPrefix+userID, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}
	return k, nil
}

// Get loads a key record regardless of its state.
func (m *KeyManager) Get(ctx context.Context, key string) (*model.APIKey, error) {
	fields, err := m.redis.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrKeyNotFound
	}

	k := &model.APIKey{
		Key:         key,
		UserID:      fields["user_id"],
		Description: fields["description"],
		IsActive:    fields["is_active"] == "1",
	}
	k.CreatedAt, _ = time.Parse(time.RFC3339, fields["created_at"])
	k.ExpiresAt, _ = time.Parse(time.RFC3339, fields["expires_at"])
	k.RateLimit, _ = strconv.Atoi(fields["rate_limit"])
	return k, nil
}

// Validate returns the key record if it exists, is active and not expired.
func (m *KeyManager) Validate(ctx context.Context, key string) (*model.APIKey, error) {
	k, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !k.IsActive {
		return nil, ErrKeyInactive
	}
	if !k.ExpiresAt.IsZero() && m.now().After(k.ExpiresAt) {
		return nil, ErrKeyExpired
	}
	return k, nil
}

// Revoke deactivates a key owned by userID.
func (m *KeyManager) Revoke(ctx context.Context, userID, key string) error {
	k, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if k.UserID != userID {
		return ErrKeyNotFound
	}
	if err := m.redis.HSet(ctx, keyPrefix+key, "is_active", "0").Err(); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}

// LogUsage counts one request against today's quota and returns the new count.
func (m *KeyManager) LogUsage(ctx context.Context, key string) (int64, error) {
	usageKey := m.usageKey(key)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, usageKey)
	pipe.Expire(ctx, usageKey, usageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to log api key usage: %w", err)
	}
	return incr.Val(), nil
}

// TodayUsage returns how many requests the key made today.
func (m *KeyManager) TodayUsage(ctx context.Context, key string) (int64, error) {
	n, err := m.redis.Get(ctx, m.usageKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read api key usage: %w", err)
	}
	return n, nil
}

// WithinRateLimit reports whether the key may make another request today.
func (m *KeyManager) WithinRateLimit(ctx context.Context, k *model.APIKey) (bool, error) {
	used, err := m.TodayUsage(ctx, k.Key)
	if err != nil {
		return false, err
	}
	return used < int64(k.RateLimit), nil
}

// Info returns the key record plus today's usage, for its owner only.
func (m *KeyManager) Info(ctx context.Context, userID, key string) (*model.APIKeyInfo, error) {
	k, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if k.UserID != userID {
		return nil, ErrKeyNotFound
	}
	used, err := m.TodayUsage(ctx, key)
	if err != nil {
		return nil, err
	}
	return &model.APIKeyInfo{APIKey: *k, TodayUsage: used}, nil
}

func (m *KeyManager) usageKey(key string) string {
	return usagePrefix + key + ":" + m.now().UTC().Format("2006-01-02")
}

func newKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
