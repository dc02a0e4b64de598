package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

const oneTimeColumns = `id, token, kind, user_id, relates_to, created_at, expires_at`

type OneTimeTokenRepo struct {
	db DBTX
}

func NewOneTimeTokenRepo(db DBTX) *OneTimeTokenRepo { return &OneTimeTokenRepo{db: db} }

func (r *OneTimeTokenRepo) Put(ctx context.Context, t *domain.OneTimeToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO one_time_tokens (`+oneTimeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Token, string(t.Kind), t.UserID, t.RelatesTo, t.CreatedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("one-time token already exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *OneTimeTokenRepo) Get(ctx context.Context, token string) (*domain.OneTimeToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oneTimeColumns+` FROM one_time_tokens WHERE token = $1`, token)
	t, err := scanOneTime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("one-time token not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *OneTimeTokenRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM one_time_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *OneTimeTokenRepo) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	return r.exec(ctx, `DELETE FROM one_time_tokens WHERE user_id = $1 AND expires_at < $2`, userID, now)
}

func (r *OneTimeTokenRepo) DeleteExpiredByRelatesTo(ctx context.Context, relatesTo string, now time.Time) error {
	return r.exec(ctx, `DELETE FROM one_time_tokens WHERE relates_to = $1 AND expires_at < $2`, relatesTo, now)
}

func (r *OneTimeTokenRepo) ListByUser(ctx context.Context, userID string) ([]domain.OneTimeToken, error) {
	return r.list(ctx, `SELECT `+oneTimeColumns+` FROM one_time_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *OneTimeTokenRepo) ListByRelatesTo(ctx context.Context, relatesTo string) ([]domain.OneTimeToken, error) {
	return r.list(ctx, `SELECT `+oneTimeColumns+` FROM one_time_tokens WHERE relates_to = $1 ORDER BY created_at`, relatesTo)
}

func (r *OneTimeTokenRepo) exec(ctx context.Context, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *OneTimeTokenRepo) list(ctx context.Context, q, arg string) ([]domain.OneTimeToken, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []domain.OneTimeToken
	for rows.Next() {
		t, err := scanOneTime(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOneTime(s scanner) (*domain.OneTimeToken, error) {
	var (
		t      domain.OneTimeToken
		kind   string
		userID sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Token, &kind, &userID, &t.RelatesTo, &t.CreatedAt, &t.ExpiresAt); err != nil {
		return nil, err
	}
	t.Kind = domain.TokenKind(kind)
	if userID.Valid {
		t.UserID = &userID.String
	}
	return &t, nil
}
