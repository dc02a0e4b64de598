package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

type RefreshTokenRepo struct{ s *Store }

func (r *RefreshTokenRepo) Put(_ context.Context, t *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refresh[t.Token]; ok {
		return fmt.Errorf("refresh token already exists: %w", domain.ErrConflict)
	}
	r.s.refresh[t.Token] = *t
	return nil
}

func (r *RefreshTokenRepo) GetWithOwner(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.refresh[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	if u, ok := r.s.users[t.UserID]; ok {
		t.User = u.Public()
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.refresh, token)
	return nil
}

func (r *RefreshTokenRepo) DeleteExpiredByUser(_ context.Context, userID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.refresh {
		if t.UserID == userID && t.Expired(now) {
			delete(r.s.refresh, k)
		}
	}
	return nil
}

func (r *RefreshTokenRepo) Replace(_ context.Context, used string, next *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refresh[used]; !ok {
		return fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	delete(r.s.refresh, used)
	stored := *next
	stored.User = nil
	r.s.refresh[next.Token] = stored
	return nil
}
