package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

type RefreshTokenRepo struct {
	db *sql.DB
}

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

func (r *RefreshTokenRepo) Put(ctx context.Context, t *domain.RefreshToken) error {
	return insertRefresh(ctx, r.db, t)
}

func insertRefresh(ctx context.Context, db DBTX, t *domain.RefreshToken) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Token, t.UserID, t.CreatedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("refresh token already exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetWithOwner joins the token with its owner. User is nil when the owner row is gone.
func (r *RefreshTokenRepo) GetWithOwner(ctx context.Context, token string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.token, t.user_id, t.created_at, t.expires_at,
		        u.user_id, u.email, u.display_name, u.created_at
		   FROM refresh_tokens t
		   LEFT JOIN users u ON u.user_id = t.user_id
		  WHERE t.token = $1`, token)

	var (
		t          domain.RefreshToken
		ownerID    sql.NullString
		ownerEmail sql.NullString
		ownerName  sql.NullString
		ownerSince sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt,
		&ownerID, &ownerEmail, &ownerName, &ownerSince)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if ownerID.Valid {
		t.User = &domain.PublicUser{ID: ownerID.String, Email: ownerEmail.String, CreatedAt: ownerSince.Time}
		if ownerName.Valid {
			t.User.DisplayName = &ownerName.String
		}
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at < $2`, userID, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Replace deletes used and inserts next in one transaction. Zero deleted
// rows means used was already consumed.
func (r *RefreshTokenRepo) Replace(ctx context.Context, used string, next *domain.RefreshToken) error {
	return WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, used)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
		}
		return insertRefresh(ctx, tx, next)
	})
}
