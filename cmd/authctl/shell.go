package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-auth-sessions/internal/client"
	"github.com/go-auth-sessions/internal/domain"
	"golang.org/x/term"
)

// readPassword prompts on out and reads without echo from the terminal.
func readPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

type api interface {
	State() client.State
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error)
	Login(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	Account(ctx context.Context) (*domain.PublicUser, error)
	UpdateAccount(ctx context.Context, req domain.UpdateAccountRequest) (*domain.PublicUser, error)
	ChangePassword(ctx context.Context, old, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	RequestAccountDeletion(ctx context.Context) error
}

type shell struct {
	api     api
	in      *bufio.Reader
	out     io.Writer
	readPwd func(out io.Writer, prompt string) (string, error)
}

const help = `commands:
  register <email> [display name]   create an account
  login <email>                     sign in
  whoami                            show the signed-in account
  rename <display name>             change the display name
  passwd                            change the password
  reset <email>                     email a password reset link
  delete                            email an account deletion link
  signout                           sign out
  exit                              leave`

func (s *shell) run(ctx context.Context) {
	for {
		fmt.Fprintf(s.out, "auth [%s]> ", s.api.State())
		line, err := s.in.ReadString('\n')
		if fields := strings.Fields(line); len(fields) > 0 {
			if fields[0] == "exit" || fields[0] == "quit" {
				return
			}
			if cerr := s.exec(ctx, fields[0], fields[1:]); cerr != nil {
				fmt.Fprintln(s.out, "error:", describe(cerr))
			}
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, help)
	case "register":
		if len(args) < 1 {
			return errors.New("usage: register <email> [display name]")
		}
		pw, err := s.readPwd(s.out, "password: ")
		if err != nil {
			return err
		}
		req := domain.RegisterRequest{Email: args[0], Password: pw}
		if len(args) > 1 {
			name := strings.Join(args[1:], " ")
			req.DisplayName = &name
		}
		if _, err := s.api.Register(ctx, req); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("user_registered_success"))
	case "login":
		if len(args) != 1 {
			return errors.New("usage: login <email>")
		}
		pw, err := s.readPwd(s.out, "password: ")
		if err != nil {
			return err
		}
		if err := s.api.Login(ctx, args[0], pw); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("login_success"))
	case "whoami":
		u, err := s.api.Account(ctx)
		if err != nil {
			return err
		}
		s.printUser(u)
	case "rename":
		if len(args) == 0 {
			return errors.New("usage: rename <display name>")
		}
		name := strings.Join(args, " ")
		u, err := s.api.UpdateAccount(ctx, domain.UpdateAccountRequest{DisplayName: &name})
		if err != nil {
			return err
		}
		s.printUser(u)
	case "passwd":
		old, err := s.readPwd(s.out, "current password: ")
		if err != nil {
			return err
		}
		next, err := s.readPwd(s.out, "new password: ")
		if err != nil {
			return err
		}
		if err := s.api.ChangePassword(ctx, old, next); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("password_update_success"))
	case "reset":
		if len(args) != 1 {
			return errors.New("usage: reset <email>")
		}
		if err := s.api.RequestPasswordReset(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("password_reset_request_accepted"))
	case "delete":
		if err := s.api.RequestAccountDeletion(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("deletion_request_accepted"))
	case "signout":
		if err := s.api.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, client.Message("signout_success"))
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *shell) printUser(u *domain.PublicUser) {
	name := "-"
	if u.DisplayName != nil {
		name = *u.DisplayName
	}
	fmt.Fprintf(s.out, "id:      %s\nemail:   %s\nname:    %s\ncreated: %s\n", u.ID, u.Email, name, u.CreatedAt.Format("2006-01-02 15:04"))
}

// describe turns API errors into their user-facing message.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Code == "validation_error" {
			return apiErr.Message
		}
		return client.Message(apiErr.Code)
	case errors.Is(err, client.ErrSessionExpired):
		return client.Message("refresh_expired")
	default:
		return err.Error()
	}
}
