package jwtinfra

import (
	"strings"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestProvider(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(&config.Config{JWTSecret: testSecret, AccessTokenTTL: 5 * time.Minute}, opts...)
	require.NoError(t, err)
	return p
}

func testUser() *domain.PublicUser {
	name := "alice"
	return &domain.PublicUser{
		ID:          "01HZX0000000000000000000AA",
		Email:       "alice@example.com",
		DisplayName: &name,
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewProvider_EmptySecret(t *testing.T) {
	_, err := NewProvider(&config.Config{})
	assert.Error(t, err)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := newTestProvider(t)
	u := testUser()

	signed, err := p.Sign(u)
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	got := claims.User()
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Email, got.Email)
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, *u.DisplayName, *got.DisplayName)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, ClaimsVersion, claims.Version)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestSignVerify_NilDisplayName(t *testing.T) {
	p := newTestProvider(t)
	u := testUser()
	u.DisplayName = nil

	signed, err := p.Sign(u)
	require.NoError(t, err)
	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Nil(t, claims.DisplayName)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	p := newTestProvider(t, WithClock(func() time.Time { return now }))

	signed, err := p.Sign(testUser())
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_BadSignature(t *testing.T) {
	p := newTestProvider(t)
	other, err := NewProvider(&config.Config{JWTSecret: "another-secret-another-secret-00", AccessTokenTTL: time.Minute})
	require.NoError(t, err)

	signed, err := other.Sign(testUser())
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_ExpiredWithBadSignatureIsInvalid(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	other, err := NewProvider(&config.Config{JWTSecret: "another-secret-another-secret-00", AccessTokenTTL: time.Minute},
		WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	signed, err := other.Sign(testUser())
	require.NoError(t, err)

	_, err = newTestProvider(t).Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	p := newTestProvider(t)
	for _, tok := range []string{"", "not-a-token", "a.b.c", strings.Repeat("x", 500)} {
		_, err := p.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, tok)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	p := newTestProvider(t)
	claims := Claims{
		Version: ClaimsVersion,
		UserID:  "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = p.Verify(hs512)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Verify(none)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RejectsUnknownClaimsVersion(t *testing.T) {
	p := newTestProvider(t)
	claims := Claims{
		Version: 99,
		UserID:  "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	p := newTestProvider(t)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Version: ClaimsVersion, UserID: "u1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_IgnoresSignatureAndExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	p := newTestProvider(t, WithClock(func() time.Time { return past }))
	signed, err := p.Sign(testUser())
	require.NoError(t, err)

	claims, err := Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.True(t, claims.ExpiresAt.Before(time.Now()))

	_, err = Decode("garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
