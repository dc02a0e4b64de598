package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Session is what a successful login or refresh hands back to transport:
// a signed access token plus the refresh token to set as a cookie.
type Session struct {
	AccessToken  string
	RefreshToken *domain.RefreshToken
	User         *domain.PublicUser
}

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, refreshToken string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type refreshTokens interface {
	Issue(ctx context.Context, userID string) (*domain.RefreshToken, error)
	Resolve(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	Rotate(ctx context.Context, used *domain.RefreshToken) (*domain.RefreshToken, error)
}

type jwtSigner interface {
	Sign(u *domain.PublicUser) (string, error)
}

type service struct {
	users   userStore
	refresh refreshTokens
	signer  jwtSigner
	now     func() time.Time
}

type ServiceDeps struct {
	UserRepo      userStore
	RefreshTokens refreshTokens
	JWTProvider   jwtSigner
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:   deps.UserRepo,
		refresh: deps.RefreshTokens,
		signer:  deps.JWTProvider,
		now:     now,
	}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !u.Verified {
		return nil, domain.ErrEmailNotVerified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidPassword
	}

	pub := u.Public()
	access, err := s.signer.Sign(pub)
	if err != nil {
		return nil, err
	}
	rt, err := s.refresh.Issue(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	rt.User = pub
	return &Session{AccessToken: access, RefreshToken: rt, User: pub}, nil
}

// Refresh consumes refreshToken and returns a new access token and a rotated
// refresh token. A token that loses a concurrent rotation is reported as invalid.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	used, err := s.resolve(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	next, err := s.refresh.Rotate(ctx, used)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	access, err := s.signer.Sign(used.User)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: next, User: used.User}, nil
}

func (s *service) SignOut(ctx context.Context, refreshToken string) error {
	rt, err := s.resolve(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.refresh.Revoke(ctx, rt.Token)
}

// resolve applies the refresh guard: present, known, unexpired, owner still exists.
func (s *service) resolve(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, domain.ErrNoRefreshProvided
	}
	rt, err := s.refresh.Resolve(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidRefresh
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if rt.Expired(s.now()) {
		return nil, domain.ErrRefreshExpired
	}
	if rt.User == nil {
		return nil, domain.ErrUserNotFound
	}
	return rt, nil
}
