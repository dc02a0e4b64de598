package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRefreshStore struct{ mock.Mock }

func (m *mockRefreshStore) Put(ctx context.Context, t *domain.RefreshToken) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockRefreshStore) GetWithOwner(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if t, _ := args.Get(0).(*domain.RefreshToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRefreshStore) Delete(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}
func (m *mockRefreshStore) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	return m.Called(ctx, userID, now).Error(0)
}
func (m *mockRefreshStore) Replace(ctx context.Context, used string, next *domain.RefreshToken) error {
	return m.Called(ctx, used, next).Error(0)
}

type mockOneTimeStore struct{ mock.Mock }

func (m *mockOneTimeStore) Put(ctx context.Context, t *domain.OneTimeToken) error {
	return m.Called(ctx, t).Error(0)
}
func (m *mockOneTimeStore) Get(ctx context.Context, token string) (*domain.OneTimeToken, error) {
	args := m.Called(ctx, token)
	if t, _ := args.Get(0).(*domain.OneTimeToken); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOneTimeStore) Delete(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}
func (m *mockOneTimeStore) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	return m.Called(ctx, userID, now).Error(0)
}
func (m *mockOneTimeStore) DeleteExpiredByRelatesTo(ctx context.Context, relatesTo string, now time.Time) error {
	return m.Called(ctx, relatesTo, now).Error(0)
}
func (m *mockOneTimeStore) ListByUser(ctx context.Context, userID string) ([]domain.OneTimeToken, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).([]domain.OneTimeToken)
	return l, args.Error(1)
}
func (m *mockOneTimeStore) ListByRelatesTo(ctx context.Context, relatesTo string) ([]domain.OneTimeToken, error) {
	args := m.Called(ctx, relatesTo)
	l, _ := args.Get(0).([]domain.OneTimeToken)
	return l, args.Error(1)
}

// --- helpers ---

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

// --- RefreshTokens ---

func TestRefreshIssue_PersistsWithExpiry(t *testing.T) {
	st := &mockRefreshStore{}
	st.On("Put", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)
	st.On("DeleteExpiredByUser", mock.Anything, "u1", fixedNow).Return(nil)

	rt, err := NewRefreshTokens(st, 7*24*time.Hour, clock).Issue(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rt.UserID)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), rt.ExpiresAt)
	assert.GreaterOrEqual(t, len(rt.Token), 86)
	st.AssertExpectations(t)
}

func TestRefreshIssue_SweepFailureDoesNotFailIssue(t *testing.T) {
	st := &mockRefreshStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	st.On("DeleteExpiredByUser", mock.Anything, "u1", mock.Anything).Return(errors.New("throttled"))

	rt, err := NewRefreshTokens(st, time.Hour, clock).Issue(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, rt.Token)
}

func TestRefreshIssue_InsertFailureFails(t *testing.T) {
	st := &mockRefreshStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(errors.New("db down"))
	st.On("DeleteExpiredByUser", mock.Anything, "u1", mock.Anything).Return(nil)

	_, err := NewRefreshTokens(st, time.Hour, clock).Issue(context.Background(), "u1")
	assert.ErrorContains(t, err, "db down")
}

func TestRefreshRotate_ReplacesUsedToken(t *testing.T) {
	st := &mockRefreshStore{}
	owner := &domain.PublicUser{ID: "u1", Email: "a@x.com"}
	used := &domain.RefreshToken{Token: "old", UserID: "u1", User: owner}
	st.On("Replace", mock.Anything, "old", mock.MatchedBy(func(n *domain.RefreshToken) bool {
		return n.UserID == "u1" && n.Token != "old"
	})).Return(nil)
	st.On("DeleteExpiredByUser", mock.Anything, "u1", fixedNow).Return(nil)

	next, err := NewRefreshTokens(st, time.Hour, clock).Rotate(context.Background(), used)
	require.NoError(t, err)
	assert.NotEqual(t, "old", next.Token)
	assert.Same(t, owner, next.User)
	st.AssertExpectations(t)
}

func TestRefreshRotate_AlreadyConsumed(t *testing.T) {
	st := &mockRefreshStore{}
	st.On("Replace", mock.Anything, "old", mock.Anything).Return(domain.ErrNotFound)
	st.On("DeleteExpiredByUser", mock.Anything, "u1", mock.Anything).Return(nil)

	_, err := NewRefreshTokens(st, time.Hour, clock).Rotate(context.Background(), &domain.RefreshToken{Token: "old", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshResolveAndRevoke(t *testing.T) {
	st := &mockRefreshStore{}
	st.On("GetWithOwner", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	st.On("Delete", mock.Anything, "tok").Return(nil)
	svc := NewRefreshTokens(st, time.Hour, clock)

	_, err := svc.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, svc.Revoke(context.Background(), "tok"))
	st.AssertExpectations(t)
}

// --- OneTimeTokens ---

func TestOneTimeIssue(t *testing.T) {
	st := &mockOneTimeStore{}
	st.On("Put", mock.Anything, mock.MatchedBy(func(tok *domain.OneTimeToken) bool {
		return tok.Kind == domain.KindPasswordReset && *tok.UserID == "u1" && tok.RelatesTo == "a@x.com"
	})).Return(nil)

	tok, err := NewOneTimeTokens(st, 30*time.Minute, clock).Issue(context.Background(), "u1", "a@x.com", domain.KindPasswordReset)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*time.Minute), tok.ExpiresAt)
	st.AssertExpectations(t)
}

func TestRedeem_Guard(t *testing.T) {
	live := &domain.OneTimeToken{Token: "live", Kind: domain.KindConfirmation, UserID: strPtr("u1"), ExpiresAt: fixedNow.Add(time.Minute)}
	expiredWrongKind := &domain.OneTimeToken{Token: "old", Kind: domain.KindPasswordReset, UserID: strPtr("u1"), ExpiresAt: fixedNow.Add(-time.Minute)}

	st := &mockOneTimeStore{}
	st.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	st.On("Get", mock.Anything, "live").Return(live, nil)
	st.On("Get", mock.Anything, "old").Return(expiredWrongKind, nil)
	st.On("Get", mock.Anything, "broken").Return(nil, errors.New("db down"))
	svc := NewOneTimeTokens(st, time.Hour, clock)
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "missing", domain.KindConfirmation)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// expiry is checked before kind
	_, err = svc.Redeem(ctx, "old", domain.KindConfirmation)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	assert.ErrorIs(t, err, domain.ErrGone)

	_, err = svc.Redeem(ctx, "live", domain.KindAccountDeletion)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	got, err := svc.Redeem(ctx, "live", domain.KindConfirmation)
	require.NoError(t, err)
	assert.Same(t, live, got)

	_, err = svc.Redeem(ctx, "broken", domain.KindConfirmation)
	assert.ErrorContains(t, err, "db down")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestEnsureNoPendingForEmail(t *testing.T) {
	conflict := domain.ErrExistingPasswordReset
	ctx := context.Background()

	t.Run("pending of same kind conflicts", func(t *testing.T) {
		st := &mockOneTimeStore{}
		st.On("DeleteExpiredByRelatesTo", mock.Anything, "a@x.com", fixedNow).Return(nil)
		st.On("ListByRelatesTo", mock.Anything, "a@x.com").Return([]domain.OneTimeToken{
			{Kind: domain.KindPasswordReset, ExpiresAt: fixedNow.Add(time.Minute)},
		}, nil)
		err := NewOneTimeTokens(st, time.Hour, clock).EnsureNoPendingForEmail(ctx, "a@x.com", domain.KindPasswordReset, conflict)
		assert.ErrorIs(t, err, conflict)
		st.AssertExpectations(t)
	})

	t.Run("other kinds do not conflict", func(t *testing.T) {
		st := &mockOneTimeStore{}
		st.On("DeleteExpiredByRelatesTo", mock.Anything, "a@x.com", fixedNow).Return(nil)
		st.On("ListByRelatesTo", mock.Anything, "a@x.com").Return([]domain.OneTimeToken{
			{Kind: domain.KindConfirmation, ExpiresAt: fixedNow.Add(time.Minute)},
		}, nil)
		err := NewOneTimeTokens(st, time.Hour, clock).EnsureNoPendingForEmail(ctx, "a@x.com", domain.KindPasswordReset, conflict)
		assert.NoError(t, err)
	})

	t.Run("purge failure surfaces", func(t *testing.T) {
		st := &mockOneTimeStore{}
		st.On("DeleteExpiredByRelatesTo", mock.Anything, "a@x.com", fixedNow).Return(errors.New("db down"))
		err := NewOneTimeTokens(st, time.Hour, clock).EnsureNoPendingForEmail(ctx, "a@x.com", domain.KindPasswordReset, conflict)
		assert.ErrorContains(t, err, "db down")
		st.AssertNotCalled(t, "ListByRelatesTo", mock.Anything, mock.Anything)
	})
}

func TestEnsureNoPendingForUser(t *testing.T) {
	st := &mockOneTimeStore{}
	st.On("DeleteExpiredByUser", mock.Anything, "u1", fixedNow).Return(nil)
	st.On("ListByUser", mock.Anything, "u1").Return([]domain.OneTimeToken{
		{Kind: domain.KindAccountDeletion, ExpiresAt: fixedNow.Add(time.Minute)},
	}, nil)

	err := NewOneTimeTokens(st, time.Hour, clock).EnsureNoPendingForUser(context.Background(), "u1", domain.KindAccountDeletion, domain.ErrExistingDeletionRequest)
	assert.ErrorIs(t, err, domain.ErrExistingDeletionRequest)
	assert.ErrorIs(t, err, domain.ErrConflict)
}
