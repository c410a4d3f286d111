package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediaflow/api/internal/model"
)

const (
	userPrefix      = "user:"
	userEmailPrefix = "user:email:"
	userNamePrefix  = "user:username:"
	resetPrefix     = "user:reset:"

	DefaultResetTokenTTL = 24 * time.Hour
)

var (
	ErrUserExists         = errors.New("email or username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// UserStore keeps accounts in Redis: one hash per user plus unique email and
// username index keys claimed with SETNX.
type UserStore struct {
	redis      *redis.Client
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// NewUserStore falls back to bcrypt.DefaultCost for an out-of-range cost and
// to DefaultResetTokenTTL for a non-positive ttl.
func NewUserStore(redisClient *redis.Client, bcryptCost int, resetTTL time.Duration) *UserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &UserStore{
		redis:      redisClient,
		bcryptCost: bcryptCost,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func usernameKey(username string) string {
	return userNamePrefix + strings.ToLower(strings.TrimSpace(username))
}

func (s *UserStore) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// claim reserves an index key for id. It reports false when another user
// holds it.
func (s *UserStore) claim(ctx context.Context, key, id string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, key, id, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve %s: %w", key, err)
	}
	return ok, nil
}

// Create registers a new active user.
func (s *UserStore) Create(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &model.User{
		ID:                uuid.New().String(),
		Email:             normalizeEmail(req.Email),
		Username:          strings.TrimSpace(req.Username),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       req.PhoneNumber,
		Bio:               req.Bio,
		ProfilePictureURL: req.ProfilePictureURL,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	emailKey, nameKey := userEmailPrefix+u.Email, usernameKey(u.Username)
	ok, err := s.claim(ctx, emailKey, u.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserExists
	}
	ok, err = s.claim(ctx, nameKey, u.ID)
	if err != nil || !ok {
		s.redis.Del(ctx, emailKey)
		if err != nil {
			return nil, err
		}
		return nil, ErrUserExists
	}

	fields := userFields(u)
	fields["password_hash"] = hash
	if err := s.redis.HSet(ctx, userPrefix+u.ID, fields).Err(); err != nil {
		s.redis.Del(ctx, emailKey, nameKey)
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	return u, nil
}

func userFields(u *model.User) map[string]any {
	return map[string]any{
		"id":                  u.ID,
		"email":               u.Email,
		"username":            u.Username,
		"first_name":          u.FirstName,
		"last_name":           u.LastName,
		"phone_number":        u.PhoneNumber,
		"bio":                 u.Bio,
		"profile_picture_url": u.ProfilePictureURL,
		"is_active":           boolField(u.IsActive),
		"is_verified":         boolField(u.IsVerified),
		"created_at":          u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":          u.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// load returns the user and its password hash.
func (s *UserStore) load(ctx context.Context, id string) (*model.User, string, error) {
	fields, err := s.redis.HGetAll(ctx, userPrefix+id).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", ErrUserNotFound
	}

	u := &model.User{
		ID:                fields["id"],
		Email:             fields["email"],
		Username:          fields["username"],
		FirstName:         fields["first_name"],
		LastName:          fields["last_name"],
		PhoneNumber:       fields["phone_number"],
		Bio:               fields["bio"],
		ProfilePictureURL: fields["profile_picture_url"],
		IsActive:          fields["is_active"] == "1",
		IsVerified:        fields["is_verified"] == "1",
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return u, fields["password_hash"], nil
}

// Get returns the user with the given ID.
func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	u, _, err := s.load(ctx, id)
	return u, err
}

func (s *UserStore) idByEmail(ctx context.Context, email string) (string, error) {
	id, err := s.redis.Get(ctx, userEmailPrefix+normalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up email: %w", err)
	}
	return id, nil
}

// Authenticate checks an email and password pair of an active user.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	id, err := s.idByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	u, hash, err := s.load(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Update applies the non-nil fields of req. Changing email or username moves
// the corresponding index key.
func (s *UserStore) Update(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	u, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	var claimed, released []string
	rollback := func() {
		if len(claimed) > 0 {
			s.redis.Del(ctx, claimed...)
		}
	}

	if req.Email != nil {
		if email := normalizeEmail(*req.Email); email != u.Email {
			ok, err := s.claim(ctx, userEmailPrefix+email, id)
			if err != nil || !ok {
				rollback()
				if err != nil {
					return nil, err
				}
				return nil, ErrUserExists
			}
			claimed = append(claimed, userEmailPrefix+email)
			released = append(released, userEmailPrefix+u.Email)
			fields["email"] = email
		}
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if usernameKey(name) != usernameKey(u.Username) {
			ok, err := s.claim(ctx, usernameKey(name), id)
			if err != nil || !ok {
				rollback()
				if err != nil {
					return nil, err
				}
				return nil, ErrUserExists
			}
			claimed = append(claimed, usernameKey(name))
			released = append(released, usernameKey(u.Username))
		}
		fields["username"] = name
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			rollback()
			return nil, err
		}
		fields["password_hash"] = hash
	}

	optional := map[string]*string{
		"first_name":          req.FirstName,
		"last_name":           req.LastName,
		"phone_number":        req.PhoneNumber,
		"bio":                 req.Bio,
		"profile_picture_url": req.ProfilePictureURL,
	}
	for field, v := range optional {
		if v != nil {
			fields[field] = *v
		}
	}
	fields["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)

	if err := s.redis.HSet(ctx, userPrefix+id, fields).Err(); err != nil {
		rollback()
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if len(released) > 0 {
		s.redis.Del(ctx, released...)
	}
	return s.Get(ctx, id)
}

// Delete removes the user and its index keys.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	u, _, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, userPrefix+id, userEmailPrefix+u.Email, usernameKey(u.Username))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// CreateResetToken issues a single-use password reset token for the active
// user owning email.
func (s *UserStore) CreateResetToken(ctx context.Context, email string) (string, error) {
	id, err := s.idByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	u, _, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if !u.IsActive {
		return "", ErrUserNotFound
	}

	token, err := newKey()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, resetPrefix+token, id, s.resetTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes token and sets a new password.
func (s *UserStore) ResetPassword(ctx context.Context, token, newPassword string) error {
	id, err := s.redis.GetDel(ctx, resetPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("failed to read reset token: %w", err)
	}

	u, _, err := s.load(ctx, id)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !u.IsActive) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.redis.HSet(ctx, userPrefix+id,
		"password_hash", hash,
		"updated_at", s.now().UTC().Format(time.RFC3339Nano),
	).Err()
}
