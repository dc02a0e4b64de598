// Package client is a Go client for the auth API that keeps its cookie session
// alive: expired access tokens are refreshed transparently and concurrent
// requests share a single refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"golang.org/x/net/publicsuffix"
)

type cookieNames struct {
	session string
	refresh string
}

func namesFor(namespace string) cookieNames {
	return cookieNames{
		session: "__session__" + namespace,
		refresh: "__refreshToken__" + namespace,
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Status  int             `json:"status"`
	Error   *string         `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// readEnvelope decodes the response envelope and, on success, its data into out.
func readEnvelope(resp *http.Response, out interface{}) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: "unknown", Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

type Option func(*options)

type options struct {
	base http.RoundTripper
	now  func() time.Time
}

// WithTransport sets the underlying RoundTripper, e.g. one trusting a test CA.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client talks to one API instance. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	jar     http.CookieJar
	creds   *credentials
	names   cookieNames
	coord   *Coordinator
	now     func() time.Time
}

// New returns a client for the API at baseURL whose cookies use namespace,
// the lower-cased app name the server was configured with.
func New(baseURL, namespace string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	o := options{base: http.DefaultTransport, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: u,
		jar:     jar,
		creds:   &credentials{},
		names:   namesFor(namespace),
		coord:   NewCoordinator(),
		now:     o.now,
	}
	t := &Transport{
		base:    o.base,
		jar:     jar,
		baseURL: u,
		names:   c.names,
		creds:   c.creds,
		coord:   c.coord,
		now:     o.now,
	}
	t.refresh = func(ctx context.Context) (time.Time, error) {
		exp, err := t.refreshSession(ctx)
		if err != nil {
			c.clearLocal()
		}
		return exp, err
	}
	c.http = &http.Client{
		Jar:       jar,
		Transport: t,
		// Redirects from email links are meant for browsers.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return c, nil
}

// State reports the session state as last observed by this client.
func (c *Client) State() State {
	s, _ := c.coord.State()
	return s
}

// Do sends body as JSON to path and decodes the response data into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && errors.Is(ue.Err, ErrSessionExpired) {
			return ue.Err
		}
		return err
	}
	defer resp.Body.Close()
	return readEnvelope(resp, out)
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error) {
	var u domain.PublicUser
	if err := c.Do(ctx, http.MethodPost, "/auth/register", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login stores the session tokens from the response for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var data struct {
		Token string `json:"token"`
	}
	if err := c.Do(ctx, http.MethodPost, "/auth/login", domain.LoginRequest{Email: email, Password: password}, &data); err != nil {
		return err
	}
	c.creds.setAccess(data.Token)
	if exp, err := accessExpiry(data.Token); err == nil {
		c.coord.SetAuthenticated(exp)
	}
	return nil
}

// SignOut revokes the session on the server. Local cookies are cleared even
// when the server call fails, and that failure is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.Do(ctx, http.MethodGet, "/auth/signout", nil, nil)
	c.clearLocal()
	return err
}

func (c *Client) Account(ctx context.Context) (*domain.PublicUser, error) {
	var u domain.PublicUser
	if err := c.Do(ctx, http.MethodGet, "/account", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateAccount(ctx context.Context, req domain.UpdateAccountRequest) (*domain.PublicUser, error) {
	var u domain.PublicUser
	if err := c.Do(ctx, http.MethodPatch, "/account", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, old, next string) error {
	return c.Do(ctx, http.MethodPut, "/credentials/password", domain.ChangePasswordRequest{Old: old, New: next}, nil)
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.Do(ctx, http.MethodPost, "/credentials/password/reset", domain.PasswordResetRequest{Email: email}, nil)
}

func (c *Client) RequestAccountDeletion(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/account/request-deletion", nil, nil)
}

func (c *Client) clearLocal() {
	expired := func(name string) *http.Cookie {
		return &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1}
	}
	c.jar.SetCookies(c.baseURL, []*http.Cookie{expired(c.names.session), expired(c.names.refresh)})
	c.creds.clear()
	c.coord.SetAnonymous()
}
