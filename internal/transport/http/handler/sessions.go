package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/session"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/transport/http/cookies"
)

// SessionHandler handles login, access token revalidation and sign-out.
type SessionHandler struct {
	svc session.Service
	jar *cookies.Jar
}

func NewSessionHandler(svc session.Service, jar *cookies.Jar) *SessionHandler {
	return &SessionHandler{svc: svc, jar: jar}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.jar.SetSession(w, s.AccessToken, s.RefreshToken)
	writeSuccess(w, r, http.StatusOK, "login_success", "Logged in successfully", TokenData{Token: s.AccessToken})
}

// Token exchanges the refresh cookie for a new access token and a rotated refresh token.
func (h *SessionHandler) Token(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Refresh(r.Context(), h.jar.RefreshToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.jar.SetSession(w, s.AccessToken, s.RefreshToken)
	writeSuccess(w, r, http.StatusOK, "revalidate_success", "JWT revalidated successfully", TokenData{Token: s.AccessToken})
}

// SignOut revokes the refresh token, then clears both session cookies.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), h.jar.RefreshToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	h.jar.Clear(w)
	writeSuccess(w, r, http.StatusOK, "signout_success", "User signed out successfully", nil)
}
