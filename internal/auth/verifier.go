// Package auth verifies the bearer tokens presented to the API.
//
// Tokens are HS256 JWTs issued by the account backend. The subject claim
// (or the uid claim for older tokens) identifies the user.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSigningKey  = errors.New("jwt signing key is required")
)

// Claims are the claims carried by API access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// UserID mirrors Subject on older tokens.
	UserID string `json:"uid,omitempty"`
}

// User returns the authenticated user id.
func (c *Claims) User() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Config holds configuration for the verifier.
type Config struct {
	// SigningKey is the shared HS256 secret (required).
	SigningKey string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must appear in the aud claim.
	Audience string

	// Leeway tolerates clock skew. Default: 30s.
	Leeway time.Duration
}

// Verifier validates access tokens.
type Verifier struct {
	key     []byte
	issuer  string
	aud     string
	options []jwt.ParserOption
}

// NewVerifier creates a verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}

	leeway := cfg.Leeway
	if leeway == 0 {
		leeway = 30 * time.Second
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		key:     []byte(cfg.SigningKey),
		issuer:  cfg.Issuer,
		aud:     cfg.Audience,
		options: opts,
	}, nil
}

// Verify validates token and returns the user id it was issued to.
func (v *Verifier) Verify(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrAccessTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	user := claims.User()
	if user == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidAccessToken)
	}
	return user, nil
}

// Issue signs a token for userID valid for ttl. It is used by tooling
// and tests; production tokens come from the account backend.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        tokenID(),
		},
	}
	if v.aud != "" {
		claims.Audience = jwt.ClaimStrings{v.aud}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
