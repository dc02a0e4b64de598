package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/besteffort"
	"github.com/go-auth-sessions/internal/pkg/id"
	pkgtoken "github.com/go-auth-sessions/internal/pkg/token"
)

type refreshStore interface {
	Put(ctx context.Context, t *domain.RefreshToken) error
	// GetWithOwner returns the token joined with its owner's public attributes.
	// Owner is nil when the user row no longer exists.
	GetWithOwner(ctx context.Context, token string) (*domain.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	// Replace atomically deletes used and inserts next. It returns
	// domain.ErrNotFound when used was already consumed.
	Replace(ctx context.Context, used string, next *domain.RefreshToken) error
}

// RefreshTokens issues, resolves, rotates and revokes refresh tokens.
type RefreshTokens struct {
	store refreshStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRefreshTokens(store refreshStore, ttl time.Duration, now func() time.Time) *RefreshTokens {
	if now == nil {
		now = time.Now
	}
	return &RefreshTokens{store: store, ttl: ttl, now: now}
}

// Issue persists a fresh token for userID. The same user's expired tokens are
// swept alongside the insert; a failed sweep never fails the issue.
func (r *RefreshTokens) Issue(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	t, err := r.newToken(userID)
	if err != nil {
		return nil, err
	}
	err = besteffort.Pair(
		func() error { return r.store.Put(ctx, t) },
		func() error { return r.store.DeleteExpiredByUser(ctx, userID, t.CreatedAt) },
		"failed to sweep expired refresh tokens", "user_id", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return t, nil
}

func (r *RefreshTokens) Resolve(ctx context.Context, token string) (*domain.RefreshToken, error) {
	return r.store.GetWithOwner(ctx, token)
}

// Revoke deletes the token. Deleting an unknown token is not an error.
func (r *RefreshTokens) Revoke(ctx context.Context, token string) error {
	return r.store.Delete(ctx, token)
}

// Rotate consumes used and returns its replacement. Concurrent rotations of
// the same token resolve to exactly one winner; the others get ErrNotFound.
func (r *RefreshTokens) Rotate(ctx context.Context, used *domain.RefreshToken) (*domain.RefreshToken, error) {
	next, err := r.newToken(used.UserID)
	if err != nil {
		return nil, err
	}
	err = besteffort.Pair(
		func() error { return r.store.Replace(ctx, used.Token, next) },
		func() error { return r.store.DeleteExpiredByUser(ctx, used.UserID, next.CreatedAt) },
		"failed to sweep expired refresh tokens", "user_id", used.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	next.User = used.User
	return next, nil
}

func (r *RefreshTokens) newToken(userID string) (*domain.RefreshToken, error) {
	tok, err := pkgtoken.NewOpaque()
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	return &domain.RefreshToken{
		ID:        id.New(),
		Token:     tok,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}, nil
}
