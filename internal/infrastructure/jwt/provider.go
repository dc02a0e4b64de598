package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsVersion is bumped whenever the signed claim set changes shape.
const ClaimsVersion = 1

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims holds the JWT payload fields. Only these fields are ever signed.
type Claims struct {
	Version     int       `json:"v"`
	UserID      string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	jwt.RegisteredClaims
}

func (c *Claims) User() *domain.PublicUser {
	return &domain.PublicUser{
		ID:          c.UserID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		CreatedAt:   c.CreatedAt,
	}
}

// Provider signs and verifies HS256 access tokens.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Provider)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(cfg *config.Config, opts ...Option) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	p := &Provider{secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TTL is the lifetime given to tokens issued by Sign.
func (p *Provider) TTL() time.Duration { return p.ttl }

func (p *Provider) Sign(u *domain.PublicUser) (string, error) {
	return p.SignWithTTL(u, p.ttl)
}

func (p *Provider) SignWithTTL(u *domain.PublicUser, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Version:     ClaimsVersion,
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and claims version.
// Failures are reported as ErrTokenExpired or ErrTokenInvalid, never as a panic.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Version != ClaimsVersion {
		return nil, fmt.Errorf("%w: unsupported claims version %d", ErrTokenInvalid, claims.Version)
	}
	return claims, nil
}

// Decode parses claims without verifying the signature. The result is
// advisory only; callers must not make authorization decisions with it.
func Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}
