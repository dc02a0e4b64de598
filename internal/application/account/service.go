package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/emails"
	"github.com/go-auth-sessions/internal/pkg/links"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.PublicUser, error)
	Update(ctx context.Context, userID string, req domain.UpdateAccountRequest) (*domain.PublicUser, error)
	RequestDeletion(ctx context.Context, userID, apiBase string) error
	ConfirmDeletion(ctx context.Context, token string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

type oneTimeTokens interface {
	Issue(ctx context.Context, userID, relatesTo string, kind domain.TokenKind) (*domain.OneTimeToken, error)
	Redeem(ctx context.Context, token string, kind domain.TokenKind) (*domain.OneTimeToken, error)
	Revoke(ctx context.Context, token string) error
	EnsureNoPendingForUser(ctx context.Context, userID string, kind domain.TokenKind, conflict error) error
}

type mailer interface {
	SendEmail(to, subject, html string) error
}

// userCache is read-through: Get returns nil, nil on a miss.
type userCache interface {
	Get(ctx context.Context, userID string) (*domain.PublicUser, error)
	Set(ctx context.Context, u *domain.PublicUser) error
	Invalidate(ctx context.Context, userID string) error
}

type service struct {
	repo        userStore
	tokens      oneTimeTokens
	mailer      mailer
	cache       userCache
	appName     string
	frontendURL string
}

type ServiceDeps struct {
	UserRepo      userStore
	OneTimeTokens oneTimeTokens
	Mailer        mailer
	Cache         userCache
	AppName       string
	FrontendURL   string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.UserRepo,
		tokens:      deps.OneTimeTokens,
		mailer:      deps.Mailer,
		cache:       deps.Cache,
		appName:     deps.AppName,
		frontendURL: deps.FrontendURL,
	}
}

// Get serves from the cache when it can. Cache errors degrade to a store read.
func (s *service) Get(ctx context.Context, userID string) (*domain.PublicUser, error) {
	if cached, err := s.cache.Get(ctx, userID); err != nil {
		slog.Warn("user cache read failed", "user_id", userID, "err", err)
	} else if cached != nil {
		return cached, nil
	}

	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	if err := s.cache.Set(ctx, pub); err != nil {
		slog.Warn("user cache write failed", "user_id", userID, "err", err)
	}
	return pub, nil
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateAccountRequest) (*domain.PublicUser, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates[domain.FieldDisplayName] = *req.DisplayName
	}
	if len(updates) == 0 {
		return nil, domain.ErrNothingToUpdate
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	s.invalidate(ctx, userID)
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// RequestDeletion mails a confirmation link unless a live deletion request exists.
func (s *service) RequestDeletion(ctx context.Context, userID, apiBase string) error {
	if err := s.tokens.EnsureNoPendingForUser(ctx, userID, domain.KindAccountDeletion, domain.ErrExistingDeletionRequest); err != nil {
		return err
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	tok, err := s.tokens.Issue(ctx, u.UserID, u.Email, domain.KindAccountDeletion)
	if err != nil {
		return err
	}
	link := links.Action(apiBase, "/account/confirm-deletion", tok.Token, links.FrontendPath(s.frontendURL, "auth", "login"))
	msg, err := emails.AccountDeletion(s.appName, u.Name(), link)
	if err == nil {
		err = s.mailer.SendEmail(u.Email, msg.Subject, msg.HTML)
	}
	if err != nil {
		slog.Error("account deletion email failed", "user_id", userID, "err", err)
		if rerr := s.tokens.Revoke(ctx, tok.Token); rerr != nil {
			slog.Warn("failed to revoke undelivered deletion token", "user_id", userID, "err", rerr)
		}
		return domain.ErrEmailDeliveryFailed
	}
	return nil
}

// ConfirmDeletion deletes the token's owner. Its tokens, this one included, go with it.
func (s *service) ConfirmDeletion(ctx context.Context, token string) error {
	tok, err := s.tokens.Redeem(ctx, token, domain.KindAccountDeletion)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, *tok.UserID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.invalidate(ctx, *tok.UserID)
	return nil
}

func (s *service) load(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (s *service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("failed to invalidate cached user", "user_id", userID, "err", err)
	}
}
