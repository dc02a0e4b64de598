// Package cookies owns the names and attributes of every cookie the API sets.
package cookies

import (
	"net/http"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

// Base names. The wire name is "__<base>__<namespace>".
const (
	Session        = "session"
	RefreshToken   = "refreshToken"
	VerifiedDialog = "showVerifiedDialog"
	DeletedDialog  = "showDeletedDialog"
)

// Jar writes and reads the session cookies for one application namespace.
// All cookies are Secure with SameSite=None so a frontend on another origin
// can send them with credentialed requests.
type Jar struct {
	namespace string
	accessTTL time.Duration
}

func New(namespace string, accessTTL time.Duration) *Jar {
	return &Jar{namespace: namespace, accessTTL: accessTTL}
}

func (j *Jar) Name(base string) string {
	return "__" + base + "__" + j.namespace
}

// SetSession writes the access token cookie (readable by scripts) and the
// HttpOnly refresh token cookie.
func (j *Jar) SetSession(w http.ResponseWriter, accessToken string, refresh *domain.RefreshToken) {
	http.SetCookie(w, j.cookie(Session, accessToken, int(j.accessTTL/time.Second), false))
	rc := j.cookie(RefreshToken, refresh.Token, 0, true)
	rc.Expires = refresh.ExpiresAt
	if ttl := refresh.ExpiresAt.Sub(refresh.CreatedAt); ttl > 0 {
		rc.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, rc)
}

// Clear expires both session cookies.
func (j *Jar) Clear(w http.ResponseWriter) {
	http.SetCookie(w, j.cookie(Session, "", -1, false))
	http.SetCookie(w, j.cookie(RefreshToken, "", -1, true))
}

// SetFlag writes a browser-session cookie the frontend reads once to show a dialog.
func (j *Jar) SetFlag(w http.ResponseWriter, base string) {
	http.SetCookie(w, j.cookie(base, "true", 0, false))
}

func (j *Jar) AccessToken(r *http.Request) string { return j.read(r, Session) }

func (j *Jar) RefreshToken(r *http.Request) string { return j.read(r, RefreshToken) }

func (j *Jar) read(r *http.Request, base string) string {
	c, err := r.Cookie(j.Name(base))
	if err != nil {
		return ""
	}
	return c.Value
}

func (j *Jar) cookie(base, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     j.Name(base),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
