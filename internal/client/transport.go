package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
)

// Paths the interceptor never touches: they either establish a session or
// work without one.
var publicPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/token",
	"/auth/signout",
	"/auth/verify",
	"/account/confirm-deletion",
	"/credentials/password/reset",
	"/health-check/",
}

func isPublic(path string) bool {
	for _, p := range publicPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// expirySkew refreshes slightly early so a token does not lapse in flight.
const expirySkew = 5 * time.Second

// Transport revalidates the session around each request. Before sending it
// refreshes an access token that is missing or expired; on a 401 it refreshes
// once and replays the request. Refreshes go through the Coordinator, so
// concurrent requests trigger a single refresh.
//
// The access token travels as a Bearer header and, with the refresh token, as
// explicit cookies taken from creds rather than from the jar.
type Transport struct {
	base    http.RoundTripper
	jar     http.CookieJar
	baseURL *url.URL
	names   cookieNames
	creds   *credentials
	coord   *Coordinator
	refresh RefreshFunc
	now     func() time.Time
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}
	if isPublic(req.URL.Path) {
		resp, _, err := t.send(req, body)
		return resp, err
	}

	if access, refresh := t.creds.get(); refresh != "" && !t.fresh(access) {
		if err := t.revalidate(req.Context(), access); err != nil {
			return nil, err
		}
	}

	resp, sent, err := t.send(req, body)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !t.creds.hasRefresh() {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if err := t.revalidate(req.Context(), sent); err != nil {
		return nil, err
	}
	resp, _, err = t.send(req, body)
	return resp, err
}

// revalidate refreshes the session unless the access token has already been
// replaced by a fresh one since the caller saw seen. Callers arriving after a
// shared refresh completed reuse its token instead of starting another.
func (t *Transport) revalidate(ctx context.Context, seen string) error {
	return t.coord.RunExclusive(ctx, func(ctx context.Context) (time.Time, error) {
		if access, _ := t.creds.get(); access != seen && t.fresh(access) {
			return accessExpiry(access)
		}
		return t.refresh(ctx)
	})
}

// send round-trips a copy of req carrying the current credentials and records
// any session cookies the response sets. It returns the access token it sent.
func (t *Transport) send(req *http.Request, body []byte) (*http.Response, string, error) {
	access, refresh := t.creds.get()
	resp, err := t.base.RoundTrip(t.prepare(req, body, access, refresh))
	if err != nil {
		return nil, access, err
	}
	t.creds.observe(resp.Cookies(), t.names)
	return resp, access, nil
}

// prepare clones req with a fresh body, the jar's non-session cookies and the
// given credentials.
func (t *Transport) prepare(req *http.Request, body []byte, access, refresh string) *http.Request {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}
	out.Header.Del("Cookie")
	for _, c := range t.jar.Cookies(req.URL) {
		if c.Name != t.names.session && c.Name != t.names.refresh {
			out.AddCookie(c)
		}
	}
	if access != "" {
		out.Header.Set("Authorization", "Bearer "+access)
		out.AddCookie(&http.Cookie{Name: t.names.session, Value: access})
	}
	if refresh != "" {
		out.AddCookie(&http.Cookie{Name: t.names.refresh, Value: refresh})
	}
	return out
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return b, nil
}

// fresh decodes access without verifying it. The expiry is only a hint; the
// server has the final word.
func (t *Transport) fresh(access string) bool {
	exp, err := accessExpiry(access)
	if err != nil {
		return false
	}
	return t.now().Add(expirySkew).Before(exp)
}

func accessExpiry(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, errors.New("no access token")
	}
	claims, err := jwtinfra.Decode(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// refreshSession posts to /auth/token with the current refresh token. The
// rotated cookies are picked up by send; the body's token is authoritative.
func (t *Transport) refreshSession(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL.JoinPath("/auth/token").String(), nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, _, err := t.send(req, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()
	var data struct {
		Token string `json:"token"`
	}
	if err := readEnvelope(resp, &data); err != nil {
		return time.Time{}, err
	}
	t.creds.setAccess(data.Token)
	return accessExpiry(data.Token)
}
