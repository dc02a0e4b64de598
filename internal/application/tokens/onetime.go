package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/id"
	pkgtoken "github.com/go-auth-sessions/internal/pkg/token"
)

type oneTimeStore interface {
	Put(ctx context.Context, t *domain.OneTimeToken) error
	Get(ctx context.Context, token string) (*domain.OneTimeToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	DeleteExpiredByRelatesTo(ctx context.Context, relatesTo string, now time.Time) error
	ListByUser(ctx context.Context, userID string) ([]domain.OneTimeToken, error)
	ListByRelatesTo(ctx context.Context, relatesTo string) ([]domain.OneTimeToken, error)
}

// OneTimeTokens manages single-use tokens for email-confirmed actions.
type OneTimeTokens struct {
	store oneTimeStore
	ttl   time.Duration
	now   func() time.Time
}

func NewOneTimeTokens(store oneTimeStore, ttl time.Duration, now func() time.Time) *OneTimeTokens {
	if now == nil {
		now = time.Now
	}
	return &OneTimeTokens{store: store, ttl: ttl, now: now}
}

func (o *OneTimeTokens) Issue(ctx context.Context, userID, relatesTo string, kind domain.TokenKind) (*domain.OneTimeToken, error) {
	tok, err := pkgtoken.NewOpaque()
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	t := &domain.OneTimeToken{
		ID:        id.New(),
		Token:     tok,
		Kind:      kind,
		UserID:    &userID,
		RelatesTo: relatesTo,
		CreatedAt: now,
		ExpiresAt: now.Add(o.ttl),
	}
	if err := o.store.Put(ctx, t); err != nil {
		return nil, fmt.Errorf("store %s token: %w", kind, err)
	}
	return t, nil
}

func (o *OneTimeTokens) Resolve(ctx context.Context, token string) (*domain.OneTimeToken, error) {
	return o.store.Get(ctx, token)
}

func (o *OneTimeTokens) Revoke(ctx context.Context, token string) error {
	return o.store.Delete(ctx, token)
}

func (o *OneTimeTokens) PurgeExpiredForUser(ctx context.Context, userID string) error {
	return o.store.DeleteExpiredByUser(ctx, userID, o.now())
}

func (o *OneTimeTokens) PurgeExpiredForEmail(ctx context.Context, email string) error {
	return o.store.DeleteExpiredByRelatesTo(ctx, email, o.now())
}

// Redeem resolves token and checks, in order, that it exists, has not
// expired and is of the expected kind. Expired tokens are left in place.
// The caller deletes the token once its side effect has been applied.
func (o *OneTimeTokens) Redeem(ctx context.Context, token string, kind domain.TokenKind) (*domain.OneTimeToken, error) {
	t, err := o.store.Get(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup one-time token: %w", err)
	}
	if t.Expired(o.now()) {
		return nil, domain.ErrTokenExpired
	}
	if t.Kind != kind || t.UserID == nil {
		return nil, domain.ErrInvalidToken
	}
	return t, nil
}

// EnsureNoPendingForUser purges the user's expired tokens of every kind and
// returns conflict if a live token of kind remains.
func (o *OneTimeTokens) EnsureNoPendingForUser(ctx context.Context, userID string, kind domain.TokenKind, conflict error) error {
	if err := o.PurgeExpiredForUser(ctx, userID); err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	pending, err := o.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list one-time tokens: %w", err)
	}
	return o.checkPending(pending, kind, conflict)
}

// EnsureNoPendingForEmail is EnsureNoPendingForUser keyed by the correlation email,
// for flows that run before the caller is authenticated.
func (o *OneTimeTokens) EnsureNoPendingForEmail(ctx context.Context, email string, kind domain.TokenKind, conflict error) error {
	if err := o.PurgeExpiredForEmail(ctx, email); err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	pending, err := o.store.ListByRelatesTo(ctx, email)
	if err != nil {
		return fmt.Errorf("list one-time tokens: %w", err)
	}
	return o.checkPending(pending, kind, conflict)
}

func (o *OneTimeTokens) checkPending(pending []domain.OneTimeToken, kind domain.TokenKind, conflict error) error {
	now := o.now()
	for i := range pending {
		if pending[i].Kind == kind && !pending[i].Expired(now) {
			return conflict
		}
	}
	return nil
}
