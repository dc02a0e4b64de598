package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/transport/http/cookies"
)

// AuthHandler handles registration and email verification.
type AuthHandler struct {
	svc     auth.Service
	jar     *cookies.Jar
	origins *Origins
}

func NewAuthHandler(svc auth.Service, jar *cookies.Jar, origins *Origins) *AuthHandler {
	return &AuthHandler{svc: svc, jar: jar, origins: origins}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req, h.origins.APIBase(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "user_registered_success", "User registered successfully", u)
}

// Verify is the target of the link in the verification email. With an allowed
// redirectUrl the browser is sent back to the frontend with a dialog flag set.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		writeError(w, r, domain.ErrTokenNotFound)
		return
	}
	if err := h.svc.Verify(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	const code, message = "email_verify_success", "Email verified successfully"
	if target, ok := h.origins.Redirect(q.Get("redirectUrl")); ok {
		h.jar.SetFlag(w, cookies.VerifiedDialog)
		redirect(w, r, target, code)
		return
	}
	writeSuccess(w, r, http.StatusOK, code, message, nil)
}

