package domain

import "time"

// RefreshToken is a server-side, single-use credential exchanged for access tokens.
// Many may exist per user (one per device/browser).
type RefreshToken struct {
	ID        string      `json:"id" dynamodbav:"id"`
	Token     string      `json:"token" dynamodbav:"token"`
	UserID    string      `json:"user_id" dynamodbav:"user_id"`
	CreatedAt time.Time   `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time   `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	User      *PublicUser `json:"user,omitempty" dynamodbav:"-"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// TokenKind discriminates what a one-time token may be redeemed for.
type TokenKind string

const (
	KindConfirmation    TokenKind = "confirmation"
	KindPasswordReset   TokenKind = "password_reset"
	KindAccountDeletion TokenKind = "account_deletion"
)

// OneTimeToken backs the email-confirmed flows: verification, password reset
// and account deletion. RelatesTo carries the owner's email so pending
// requests can be found before the caller is authenticated.
type OneTimeToken struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Token     string    `json:"token" dynamodbav:"token"`
	Kind      TokenKind `json:"kind" dynamodbav:"kind"`
	UserID    *string   `json:"user_id" dynamodbav:"user_id,omitempty"`
	RelatesTo string    `json:"relates_to" dynamodbav:"relates_to"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
}

func (t *OneTimeToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
