package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

type OneTimeTokenRepo struct{ s *Store }

func (r *OneTimeTokenRepo) Put(_ context.Context, t *domain.OneTimeToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.oneTimes[t.Token]; ok {
		return fmt.Errorf("one-time token already exists: %w", domain.ErrConflict)
	}
	r.s.oneTimes[t.Token] = *t
	return nil
}

func (r *OneTimeTokenRepo) Get(_ context.Context, token string) (*domain.OneTimeToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.oneTimes[token]
	if !ok {
		return nil, fmt.Errorf("one-time token not found: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (r *OneTimeTokenRepo) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.oneTimes, token)
	return nil
}

func (r *OneTimeTokenRepo) DeleteExpiredByUser(_ context.Context, userID string, now time.Time) error {
	r.deleteExpired(now, func(t domain.OneTimeToken) bool { return t.UserID != nil && *t.UserID == userID })
	return nil
}

func (r *OneTimeTokenRepo) DeleteExpiredByRelatesTo(_ context.Context, relatesTo string, now time.Time) error {
	r.deleteExpired(now, func(t domain.OneTimeToken) bool { return t.RelatesTo == relatesTo })
	return nil
}

func (r *OneTimeTokenRepo) ListByUser(_ context.Context, userID string) ([]domain.OneTimeToken, error) {
	return r.list(func(t domain.OneTimeToken) bool { return t.UserID != nil && *t.UserID == userID }), nil
}

func (r *OneTimeTokenRepo) ListByRelatesTo(_ context.Context, relatesTo string) ([]domain.OneTimeToken, error) {
	return r.list(func(t domain.OneTimeToken) bool { return t.RelatesTo == relatesTo }), nil
}

func (r *OneTimeTokenRepo) deleteExpired(now time.Time, match func(domain.OneTimeToken) bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.oneTimes {
		if match(t) && t.Expired(now) {
			delete(r.s.oneTimes, k)
		}
	}
}

func (r *OneTimeTokenRepo) list(match func(domain.OneTimeToken) bool) []domain.OneTimeToken {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.OneTimeToken
	for _, t := range r.s.oneTimes {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
