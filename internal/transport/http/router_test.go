package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/config"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
	"github.com/go-auth-sessions/internal/infrastructure/memory"
	"github.com/go-auth-sessions/internal/transport/http/handler"
	appmiddleware "github.com/go-auth-sessions/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct{ to, subject, html string }

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) SendEmail(to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, html})
	return nil
}

var mailToken = regexp.MustCompile(`(?:token=|forgot-password/)([A-Za-z0-9_-]+)`)

// lastToken returns the token from the most recent mail sent to addr.
func (m *captureMailer) lastToken(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].to == addr {
			match := mailToken.FindStringSubmatch(m.sent[i].html)
			require.Len(t, match, 2, "no token in mail %q", m.sent[i].subject)
			return match[1]
		}
	}
	t.Fatalf("no mail sent to %s", addr)
	return ""
}

// --- harness ---

type harness struct {
	t      *testing.T
	h      http.Handler
	clock  *fakeClock
	mailer *captureMailer
}

type response struct {
	Code    int
	Env     handler.Envelope
	Cookies map[string]*http.Cookie
	Header  http.Header
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		AppName:         "Test App",
		FrontendURL:     "https://app.example.com",
		PublicURL:       "https://api.example.com",
		AllowedOrigins:  []string{"https://app.example.com"},
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		OneTimeTokenTTL: 30 * time.Minute,
		BcryptCost:      4,
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
	}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	provider, err := jwtinfra.NewProvider(cfg, jwtinfra.WithClock(clock.Now))
	require.NoError(t, err)
	store := memory.NewStore()
	mailer := &captureMailer{}

	h := NewRouter(cfg, &Deps{
		Users:         store.Users(),
		RefreshTokens: store.RefreshTokens(),
		OneTimeTokens: store.OneTimeTokens(),
		Mailer:        mailer,
		JWTProvider:   provider,
		Metrics:       appmiddleware.NewMetrics(),
		HealthChecks: map[string]handler.HealthCheck{
			"store": func(context.Context) error { return nil },
		},
		Now: clock.Now,
	})
	return &harness{t: t, h: h, clock: clock, mailer: mailer}
}

func (hs *harness) do(method, target string, body interface{}, cookies ...*http.Cookie) response {
	hs.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(hs.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	rr := httptest.NewRecorder()
	hs.h.ServeHTTP(rr, req)

	resp := response{Code: rr.Code, Cookies: map[string]*http.Cookie{}, Header: rr.Header()}
	for _, c := range rr.Result().Cookies() {
		resp.Cookies[c.Name] = c
	}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(hs.t, json.NewDecoder(rr.Body).Decode(&resp.Env))
	}
	return resp
}

const (
	sessionName = "__session__testapp"
	refreshName = "__refreshToken__testapp"
)

func (hs *harness) register(email, password string) {
	hs.t.Helper()
	resp := hs.do(http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(hs.t, http.StatusCreated, resp.Code, resp.Env.Code)
}

func (hs *harness) registerVerified(email, password string) {
	hs.t.Helper()
	hs.register(email, password)
	tok := hs.mailer.lastToken(hs.t, strings.ToLower(email))
	resp := hs.do(http.MethodGet, "/auth/verify?token="+tok, nil)
	require.Equal(hs.t, http.StatusOK, resp.Code, resp.Env.Code)
}

func (hs *harness) login(email, password string) response {
	hs.t.Helper()
	return hs.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
}

// --- scenarios ---

func TestScenarioA_LoginBeforeVerification(t *testing.T) {
	hs := newHarness(t)
	hs.register("a@x.com", "P4ssword!")

	resp := hs.login("a@x.com", "P4ssword!")
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "email_not_verified", resp.Env.Code)
	assert.Empty(t, resp.Cookies)
}

func TestScenarioB_WrongPasswordNeverLocks(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("b@x.com", "P4ssword!")

	for i := 0; i < 5; i++ {
		resp := hs.login("b@x.com", "Wr0ngpass!")
		require.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "invalid_password", resp.Env.Code)
	}
	resp := hs.login("B@X.com", "P4ssword!")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "login_success", resp.Env.Code)
}

func TestScenarioC_OneOutstandingResetUntilExpiry(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("c@x.com", "P4ssword!")
	body := map[string]string{"email": "c@x.com"}

	assert.Equal(t, http.StatusCreated, hs.do(http.MethodPost, "/credentials/password/reset", body).Code)
	second := hs.do(http.MethodPost, "/credentials/password/reset", body)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "existing_password_reset_request", second.Env.Code)

	hs.clock.Advance(31 * time.Minute)
	third := hs.do(http.MethodPost, "/credentials/password/reset", body)
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "password_reset_request_accepted", third.Env.Code)
}

func TestScenarioD_StaleRefreshTokenRejected(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("d@x.com", "P4ssword!")

	login := hs.login("d@x.com", "P4ssword!")
	require.Equal(t, http.StatusOK, login.Code)
	first := login.Cookies[refreshName]
	require.NotNil(t, first)

	rotated := hs.do(http.MethodPost, "/auth/token", nil, first)
	require.Equal(t, http.StatusOK, rotated.Code)
	assert.Equal(t, "revalidate_success", rotated.Env.Code)
	assert.NotEqual(t, first.Value, rotated.Cookies[refreshName].Value)

	stale := hs.do(http.MethodPost, "/auth/token", nil, first)
	assert.Contains(t, []int{http.StatusUnauthorized, http.StatusNotFound}, stale.Code)
	assert.Equal(t, "invalid_refresh", stale.Env.Code)

	again := hs.do(http.MethodPost, "/auth/token", nil, rotated.Cookies[refreshName])
	assert.Equal(t, http.StatusOK, again.Code)
}

// --- further flows ---

func TestRegister_DuplicateAnyCase(t *testing.T) {
	hs := newHarness(t)
	hs.register("dup@x.com", "P4ssword!")

	resp := hs.do(http.MethodPost, "/auth/register", map[string]string{"email": "DUP@X.COM", "password": "P4ssword!"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "email_already_used", resp.Env.Code)
}

func TestVerify_DoubleRedemption(t *testing.T) {
	hs := newHarness(t)
	hs.register("v@x.com", "P4ssword!")
	tok := hs.mailer.lastToken(t, "v@x.com")

	first := hs.do(http.MethodGet, "/auth/verify?token="+tok+"&redirectUrl=https://app.example.com/auth/login", nil)
	assert.Equal(t, http.StatusFound, first.Code)
	assert.Equal(t, "https://app.example.com/auth/login", first.Header.Get("Location"))
	assert.Equal(t, "true", first.Cookies["__showVerifiedDialog__testapp"].Value)

	second := hs.do(http.MethodGet, "/auth/verify?token="+tok, nil)
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Equal(t, "token_not_found", second.Env.Code)
}

func TestVerify_ExpiredTokenIsGone(t *testing.T) {
	hs := newHarness(t)
	hs.register("late@x.com", "P4ssword!")
	tok := hs.mailer.lastToken(t, "late@x.com")

	hs.clock.Advance(31 * time.Minute)
	resp := hs.do(http.MethodGet, "/auth/verify?token="+tok, nil)
	assert.Equal(t, http.StatusGone, resp.Code)
	assert.Equal(t, "token_expired", resp.Env.Code)
}

func TestAccount_SessionCookieAndExpiry(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("acc@x.com", "P4ssword!")
	login := hs.login("acc@x.com", "P4ssword!")
	access := login.Cookies[sessionName]
	require.NotNil(t, access)

	resp := hs.do(http.MethodGet, "/account", nil, access)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "acc@x.com", resp.Env.Data.(map[string]interface{})["email"])

	patched := hs.do(http.MethodPatch, "/account", map[string]string{"displayName": "Ada Lovelace"}, access)
	require.Equal(t, http.StatusOK, patched.Code)
	assert.Equal(t, "Ada Lovelace", patched.Env.Data.(map[string]interface{})["displayName"])

	hs.clock.Advance(6 * time.Minute)
	expired := hs.do(http.MethodGet, "/account", nil, access)
	assert.Equal(t, http.StatusUnauthorized, expired.Code)
	assert.Equal(t, "unauthorized", expired.Env.Code)

	refreshed := hs.do(http.MethodPost, "/auth/token", nil, login.Cookies[refreshName])
	require.Equal(t, http.StatusOK, refreshed.Code)
	assert.Equal(t, http.StatusOK, hs.do(http.MethodGet, "/account", nil, refreshed.Cookies[sessionName]).Code)
}

func TestSignOut_RevokesRefreshToken(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("out@x.com", "P4ssword!")
	login := hs.login("out@x.com", "P4ssword!")
	refresh := login.Cookies[refreshName]

	out := hs.do(http.MethodGet, "/auth/signout", nil, refresh)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, -1, out.Cookies[refreshName].MaxAge)

	after := hs.do(http.MethodPost, "/auth/token", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, after.Code)

	none := hs.do(http.MethodGet, "/auth/signout", nil)
	assert.Equal(t, http.StatusBadRequest, none.Code)
	assert.Equal(t, "no_refresh_provided", none.Env.Code)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("r@x.com", "P4ssword!")
	require.Equal(t, http.StatusCreated, hs.do(http.MethodPost, "/credentials/password/reset", map[string]string{"email": "r@x.com"}).Code)
	tok := hs.mailer.lastToken(t, "r@x.com")

	valid := hs.do(http.MethodGet, "/credentials/password/reset?token="+tok, nil)
	require.Equal(t, http.StatusOK, valid.Code)
	assert.Equal(t, "password_reset_token_valid", valid.Env.Code)

	done := hs.do(http.MethodPut, "/credentials/password/reset", map[string]string{"token": tok, "password": "N3wPassword!"})
	require.Equal(t, http.StatusOK, done.Code)
	assert.Equal(t, "password_update_success", done.Env.Code)

	assert.Equal(t, http.StatusUnauthorized, hs.login("r@x.com", "P4ssword!").Code)
	assert.Equal(t, http.StatusOK, hs.login("r@x.com", "N3wPassword!").Code)

	reused := hs.do(http.MethodPut, "/credentials/password/reset", map[string]string{"token": tok, "password": "An0therPass!"})
	assert.Equal(t, http.StatusNotFound, reused.Code)
}

func TestResetRequest_UnknownEmail(t *testing.T) {
	hs := newHarness(t)
	resp := hs.do(http.MethodPost, "/credentials/password/reset", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "user_not_found", resp.Env.Code)
}

func TestChangePassword_Authenticated(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("cp@x.com", "P4ssword!")
	access := hs.login("cp@x.com", "P4ssword!").Cookies[sessionName]

	unauth := hs.do(http.MethodPut, "/credentials/password", map[string]string{"old": "P4ssword!", "new": "N3wPassword!"})
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)

	wrong := hs.do(http.MethodPut, "/credentials/password", map[string]string{"old": "Wr0ngpass!", "new": "N3wPassword!"}, access)
	assert.Equal(t, "invalid_password", wrong.Env.Code)

	same := hs.do(http.MethodPut, "/credentials/password", map[string]string{"old": "P4ssword!", "new": "P4ssword!"}, access)
	assert.Equal(t, "equal_passwords", same.Env.Code)

	ok := hs.do(http.MethodPut, "/credentials/password", map[string]string{"old": "P4ssword!", "new": "N3wPassword!"}, access)
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, http.StatusOK, hs.login("cp@x.com", "N3wPassword!").Code)
}

func TestAccountDeletion_FullFlow(t *testing.T) {
	hs := newHarness(t)
	hs.registerVerified("del@x.com", "P4ssword!")
	login := hs.login("del@x.com", "P4ssword!")
	access := login.Cookies[sessionName]

	req := hs.do(http.MethodPost, "/account/request-deletion", nil, access)
	require.Equal(t, http.StatusCreated, req.Code)
	again := hs.do(http.MethodPost, "/account/request-deletion", nil, access)
	assert.Equal(t, http.StatusConflict, again.Code)

	tok := hs.mailer.lastToken(t, "del@x.com")
	done := hs.do(http.MethodGet, "/account/confirm-deletion?token="+tok, nil)
	require.Equal(t, http.StatusOK, done.Code)
	assert.Equal(t, "account_deletion_success", done.Env.Code)
	assert.Equal(t, "Account deleted successfully", done.Env.Message)
	assert.Equal(t, -1, done.Cookies[sessionName].MaxAge)

	assert.Equal(t, "user_not_found", hs.login("del@x.com", "P4ssword!").Env.Code)
	stale := hs.do(http.MethodPost, "/auth/token", nil, login.Cookies[refreshName])
	assert.Equal(t, http.StatusUnauthorized, stale.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	hs := newHarness(t)
	ping := hs.do(http.MethodGet, "/health-check/ping", nil)
	assert.Equal(t, http.StatusOK, ping.Code)
	assert.Equal(t, "pong", ping.Env.Code)
	assert.Equal(t, http.StatusOK, hs.do(http.MethodGet, "/health-check/ready", nil).Code)

	hs.login("nobody@x.com", "P4ssword!")

	rr := httptest.NewRecorder()
	hs.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `auth_responses_total{code="user_not_found"} 1`)
	assert.Contains(t, rr.Body.String(), `route="/auth/login"`)
}

func TestCORS_AllowsCredentialedFrontend(t *testing.T) {
	hs := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	hs.h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}
