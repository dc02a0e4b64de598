package http

import (
	"context"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
	"github.com/go-auth-sessions/internal/infrastructure/smtp"
	"github.com/go-auth-sessions/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-sessions/internal/transport/http/middleware"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	// Delete removes the user together with all of its tokens.
	Delete(ctx context.Context, userID string) error
}

// RefreshTokenRepository is the minimal interface the router requires from a refresh token store.
type RefreshTokenRepository interface {
	Put(ctx context.Context, t *domain.RefreshToken) error
	GetWithOwner(ctx context.Context, token string) (*domain.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	Replace(ctx context.Context, used string, next *domain.RefreshToken) error
}

// OneTimeTokenRepository is the minimal interface the router requires from a one-time token store.
type OneTimeTokenRepository interface {
	Put(ctx context.Context, t *domain.OneTimeToken) error
	Get(ctx context.Context, token string) (*domain.OneTimeToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	DeleteExpiredByRelatesTo(ctx context.Context, relatesTo string, now time.Time) error
	ListByUser(ctx context.Context, userID string) ([]domain.OneTimeToken, error)
	ListByRelatesTo(ctx context.Context, relatesTo string) ([]domain.OneTimeToken, error)
}

// UserCache is the read-through cache for public profiles. Get returns nil, nil on a miss.
type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.PublicUser, error)
	Set(ctx context.Context, u *domain.PublicUser) error
	Invalidate(ctx context.Context, userID string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	OneTimeTokens OneTimeTokenRepository
	Cache         UserCache // optional
	Mailer        smtp.Mailer
	JWTProvider   *jwtinfra.Provider
	Metrics       *appmiddleware.Metrics // optional; /metrics is not mounted without it
	HealthChecks  map[string]handler.HealthCheck
	Now           func() time.Time // optional; defaults to time.Now
}
