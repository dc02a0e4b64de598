package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/besteffort"
	"github.com/go-auth-sessions/internal/pkg/emails"
	"github.com/go-auth-sessions/internal/pkg/id"
	"github.com/go-auth-sessions/internal/pkg/links"
	"golang.org/x/crypto/bcrypt"
)

// Service covers registration, email verification and the password flows.
// apiBase is the externally visible origin of this API; links in emails point at it.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest, apiBase string) (*domain.PublicUser, error)
	Verify(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, req domain.ConfirmPasswordResetRequest) error
	ValidatePasswordResetToken(ctx context.Context, token string) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

type oneTimeTokens interface {
	Issue(ctx context.Context, userID, relatesTo string, kind domain.TokenKind) (*domain.OneTimeToken, error)
	Redeem(ctx context.Context, token string, kind domain.TokenKind) (*domain.OneTimeToken, error)
	Revoke(ctx context.Context, token string) error
	EnsureNoPendingForEmail(ctx context.Context, email string, kind domain.TokenKind, conflict error) error
}

type mailer interface {
	SendEmail(to, subject, html string) error
}

type userCache interface {
	Invalidate(ctx context.Context, userID string) error
}

type service struct {
	users       userStore
	tokens      oneTimeTokens
	mailer      mailer
	cache       userCache
	appName     string
	frontendURL string
	bcryptCost  int
	now         func() time.Time
}

type ServiceDeps struct {
	UserRepo      userStore
	OneTimeTokens oneTimeTokens
	Mailer        mailer
	Cache         userCache
	AppName       string
	FrontendURL   string
	BcryptCost    int
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		users:       deps.UserRepo,
		tokens:      deps.OneTimeTokens,
		mailer:      deps.Mailer,
		cache:       deps.Cache,
		appName:     deps.AppName,
		frontendURL: deps.FrontendURL,
		bcryptCost:  cost,
		now:         now,
	}
}

// Register creates an unverified user and mails a confirmation link. If the
// mail cannot be sent the user is deleted again so the address stays free.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest, apiBase string) (*domain.PublicUser, error) {
	email := domain.NormalizeEmail(req.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailAlreadyUsed
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, u, apiBase); err != nil {
		slog.Error("verification email failed, rolling back user", "user_id", u.UserID, "err", err)
		if derr := s.users.Delete(ctx, u.UserID); derr != nil {
			slog.Error("failed to roll back user", "user_id", u.UserID, "err", derr)
		}
		return nil, domain.ErrVerificationEmailFailed
	}
	return u.Public(), nil
}

func (s *service) sendVerification(ctx context.Context, u *domain.User, apiBase string) error {
	tok, err := s.tokens.Issue(ctx, u.UserID, u.Email, domain.KindConfirmation)
	if err != nil {
		return err
	}
	link := links.Action(apiBase, "/auth/verify", tok.Token, links.FrontendPath(s.frontendURL, "auth", "login"))
	msg, err := emails.Verification(s.appName, u.Name(), link)
	if err != nil {
		return err
	}
	return s.mailer.SendEmail(u.Email, msg.Subject, msg.HTML)
}

// Verify marks the token's owner verified. The token is deleted alongside;
// a failed delete is only logged since the token expires anyway.
func (s *service) Verify(ctx context.Context, token string) error {
	tok, err := s.tokens.Redeem(ctx, token, domain.KindConfirmation)
	if err != nil {
		return err
	}
	userID := *tok.UserID
	err = besteffort.Pair(
		func() error {
			return s.users.Update(ctx, userID, map[string]interface{}{domain.FieldVerified: true})
		},
		func() error { return s.tokens.Revoke(ctx, tok.Token) },
		"failed to delete confirmation token", "user_id", userID,
	)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Old)); err != nil {
		return domain.ErrInvalidPassword
	}
	if req.Old == req.New {
		return domain.ErrEqualPasswords
	}
	if err := s.setPassword(ctx, userID, req.New); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RequestPasswordReset refuses while a live reset token exists for email.
// The pending check runs before the user lookup.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := s.tokens.EnsureNoPendingForEmail(ctx, email, domain.KindPasswordReset, domain.ErrExistingPasswordReset); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	tok, err := s.tokens.Issue(ctx, u.UserID, u.Email, domain.KindPasswordReset)
	if err != nil {
		return err
	}
	msg, err := emails.PasswordReset(s.appName, u.Name(), links.FrontendPath(s.frontendURL, "auth", "forgot-password", tok.Token))
	if err == nil {
		err = s.mailer.SendEmail(u.Email, msg.Subject, msg.HTML)
	}
	if err != nil {
		slog.Error("password reset email failed", "user_id", u.UserID, "err", err)
		if rerr := s.tokens.Revoke(ctx, tok.Token); rerr != nil {
			slog.Warn("failed to revoke undelivered reset token", "user_id", u.UserID, "err", rerr)
		}
		return domain.ErrEmailDeliveryFailed
	}
	return nil
}

func (s *service) ConfirmPasswordReset(ctx context.Context, req domain.ConfirmPasswordResetRequest) error {
	tok, err := s.tokens.Redeem(ctx, req.Token, domain.KindPasswordReset)
	if err != nil {
		return err
	}
	userID := *tok.UserID
	if err := s.setPassword(ctx, userID, req.Password); err != nil {
		return err
	}
	if err := s.tokens.Revoke(ctx, tok.Token); err != nil {
		slog.Warn("failed to delete password reset token", "user_id", userID, "err", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *service) ValidatePasswordResetToken(ctx context.Context, token string) error {
	_, err := s.tokens.Redeem(ctx, token, domain.KindPasswordReset)
	return err
}

func (s *service) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	err = s.users.Update(ctx, userID, map[string]interface{}{domain.FieldPasswordHash: string(hash)})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}

func (s *service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("failed to invalidate cached user", "user_id", userID, "err", err)
	}
}
