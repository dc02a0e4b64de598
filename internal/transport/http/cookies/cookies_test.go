package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byName(cs []*http.Cookie) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie, len(cs))
	for _, c := range cs {
		out[c.Name] = c
	}
	return out
}

func TestSetSession(t *testing.T) {
	j := New("myapp", 5*time.Minute)
	rr := httptest.NewRecorder()
	now := time.Now()
	j.SetSession(rr, "access", &domain.RefreshToken{Token: "refresh", CreatedAt: now, ExpiresAt: now.Add(7 * 24 * time.Hour)})

	got := byName(rr.Result().Cookies())
	access, ok := got["__session__myapp"]
	require.True(t, ok)
	assert.Equal(t, "access", access.Value)
	assert.False(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteNoneMode, access.SameSite)
	assert.Equal(t, 300, access.MaxAge)

	refresh, ok := got["__refreshToken__myapp"]
	require.True(t, ok)
	assert.Equal(t, "refresh", refresh.Value)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, 7*24*3600, refresh.MaxAge)
}

func TestClear(t *testing.T) {
	j := New("myapp", time.Minute)
	rr := httptest.NewRecorder()
	j.Clear(rr)

	got := byName(rr.Result().Cookies())
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestSetFlag(t *testing.T) {
	j := New("myapp", time.Minute)
	rr := httptest.NewRecorder()
	j.SetFlag(rr, VerifiedDialog)

	c := byName(rr.Result().Cookies())["__showVerifiedDialog__myapp"]
	require.NotNil(t, c)
	assert.Equal(t, "true", c.Value)
	assert.False(t, c.HttpOnly)
	assert.Zero(t, c.MaxAge)
}

func TestRead(t *testing.T) {
	j := New("myapp", time.Minute)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "__refreshToken__myapp", Value: "rt"})
	r.AddCookie(&http.Cookie{Name: "__session__otherapp", Value: "nope"})

	assert.Equal(t, "rt", j.RefreshToken(r))
	assert.Empty(t, j.AccessToken(r))
}
