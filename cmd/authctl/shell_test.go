package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-auth-sessions/internal/client"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) State() client.State { return m.Called().Get(0).(client.State) }

func (m *mockAPI) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*domain.PublicUser)
	return u, args.Error(1)
}

func (m *mockAPI) Login(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *mockAPI) SignOut(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockAPI) Account(ctx context.Context) (*domain.PublicUser, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*domain.PublicUser)
	return u, args.Error(1)
}

func (m *mockAPI) UpdateAccount(ctx context.Context, req domain.UpdateAccountRequest) (*domain.PublicUser, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*domain.PublicUser)
	return u, args.Error(1)
}

func (m *mockAPI) ChangePassword(ctx context.Context, old, next string) error {
	return m.Called(ctx, old, next).Error(0)
}

func (m *mockAPI) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAPI) RequestAccountDeletion(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestShell(a api, input string, passwords ...string) (*shell, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &shell{
		api: a,
		in:  bufio.NewReader(strings.NewReader(input)),
		out: out,
		readPwd: func(io.Writer, string) (string, error) {
			pw := passwords[0]
			passwords = passwords[1:]
			return pw, nil
		},
	}, out
}

func TestShell_LoginAndWhoami(t *testing.T) {
	a := &mockAPI{}
	a.On("State").Return(client.Anonymous)
	a.On("Login", mock.Anything, "a@x.com", "P4ssword!").Return(nil)
	name := "Ada"
	a.On("Account", mock.Anything).Return(&domain.PublicUser{ID: "u1", Email: "a@x.com", DisplayName: &name}, nil)

	sh, out := newTestShell(a, "login a@x.com\nwhoami\nexit\n", "P4ssword!")
	sh.run(context.Background())

	assert.Contains(t, out.String(), client.Message("login_success"))
	assert.Contains(t, out.String(), "name:    Ada")
	a.AssertExpectations(t)
}

func TestShell_ReportsAPIErrorMessage(t *testing.T) {
	a := &mockAPI{}
	a.On("State").Return(client.Anonymous)
	a.On("Login", mock.Anything, "a@x.com", "bad").Return(&client.APIError{Status: 403, Code: "email_not_verified"})

	sh, out := newTestShell(a, "login a@x.com\n", "bad")
	sh.run(context.Background())

	assert.Contains(t, out.String(), "error: "+client.Message("email_not_verified"))
}

func TestShell_RegisterWithDisplayName(t *testing.T) {
	a := &mockAPI{}
	a.On("State").Return(client.Anonymous)
	a.On("Register", mock.Anything, mock.MatchedBy(func(r domain.RegisterRequest) bool {
		return r.Email == "a@x.com" && r.Password == "P4ssword!" && r.DisplayName != nil && *r.DisplayName == "Ada Lovelace"
	})).Return(&domain.PublicUser{ID: "u1"}, nil)

	sh, out := newTestShell(a, "register a@x.com Ada Lovelace\n", "P4ssword!")
	sh.run(context.Background())

	assert.Contains(t, out.String(), client.Message("user_registered_success"))
	a.AssertExpectations(t)
}

func TestShell_SessionExpiredAndUnknownCommand(t *testing.T) {
	a := &mockAPI{}
	a.On("State").Return(client.Authenticated)
	a.On("Account", mock.Anything).Return(nil, client.ErrSessionExpired)

	sh, out := newTestShell(a, "whoami\nfly\n")
	sh.run(context.Background())

	assert.Contains(t, out.String(), "error: "+client.Message("refresh_expired"))
	assert.Contains(t, out.String(), `unknown command "fly"`)
}
