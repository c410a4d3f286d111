package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mediaflow/api/internal/config"
)

const discoveryTimeout = 30 * time.Second

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidAudience = errors.New("token audience mismatch")
)

// TokenVerifier verifies bearer tokens issued by the identity provider.
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims are the OIDC claims read from identity provider tokens.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier checks RS/ES-signed tokens against the issuer's published
// key set. Keys are refreshed in the background until Close.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	stop     context.CancelFunc
}

func NewJWKSVerifier(cfg *config.ZitadelConfig) (*JWKSVerifier, error) {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	if issuer == "" {
		return nil, fmt.Errorf("zitadel issuer is required")
	}

	discoverCtx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()

	jwksURL, err := discoverJWKSURL(discoverCtx, http.DefaultClient, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
	}

	// The refresh goroutine lives as long as this context.
	refreshCtx, stop := context.WithCancel(context.Background())
	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}

	return &JWKSVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: cfg.ClientID,
		stop:     stop,
	}, nil
}

// discoverJWKSURL reads jwks_uri from the issuer's OIDC discovery document.
func discoverJWKSURL(ctx context.Context, httpClient *http.Client, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}

	var doc struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("malformed discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}
	return doc.JWKSURI, nil
}

// Validate parses tokenString, checks signature, issuer and expiry, and the
// audience when a client ID is configured.
func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.audience) {
			return nil, ErrInvalidAudience
		}
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	if v.stop != nil {
		v.stop()
	}
	return nil
}
