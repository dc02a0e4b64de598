package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

type UserRepo struct{ s *Store }

// Create inserts u, failing with ErrEmailAlreadyUsed when the email is taken.
func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.emails[u.Email]; ok {
		return domain.ErrEmailAlreadyUsed
	}
	if _, ok := r.s.users[u.UserID]; ok {
		return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
	}
	r.s.users[u.UserID] = *u
	r.s.emails[u.Email] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	userID, ok := r.s.emails[email]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	u := r.s.users[userID]
	return &u, nil
}

func (r *UserRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return fmt.Errorf("no fields to update")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case domain.FieldVerified:
			u.Verified = v.(bool)
		case domain.FieldPasswordHash:
			u.PasswordHash = v.(string)
		case domain.FieldDisplayName:
			switch dn := v.(type) {
			case string:
				u.DisplayName = &dn
			case *string:
				u.DisplayName = dn
			}
		default:
			return fmt.Errorf("unknown user field %q", k)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.s.users[userID] = u
	return nil
}

// Delete removes the user together with every token it owns.
func (r *UserRepo) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	delete(r.s.users, userID)
	delete(r.s.emails, u.Email)
	for k, t := range r.s.refresh {
		if t.UserID == userID {
			delete(r.s.refresh, k)
		}
	}
	for k, t := range r.s.oneTimes {
		if t.UserID != nil && *t.UserID == userID {
			delete(r.s.oneTimes, k)
		}
	}
	return nil
}
