package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/domain"
)

// CredentialsHandler handles password change and the reset-by-email flow.
type CredentialsHandler struct {
	svc auth.Service
}

func NewCredentialsHandler(svc auth.Service) *CredentialsHandler {
	return &CredentialsHandler{svc: svc}
}

func (h *CredentialsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	var req domain.ChangePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "password_update_success", "Password updated successfully!", nil)
}

func (h *CredentialsHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "password_reset_request_accepted", "Reset request accepted, confirm email.", nil)
}

func (h *CredentialsHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmPasswordResetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "password_update_success", "Password updated successfully!", nil)
}

// ValidateReset lets the frontend check a reset token before showing the form.
func (h *CredentialsHandler) ValidateReset(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, domain.ErrTokenNotFound)
		return
	}
	if err := h.svc.ValidatePasswordResetToken(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "password_reset_token_valid", "The provided token is a valid one.", map[string]bool{"valid": true})
}
