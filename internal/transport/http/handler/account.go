package handler

import (
	"net/http"

	"github.com/go-auth-sessions/internal/application/account"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/transport/http/cookies"
)

// AccountHandler handles the authenticated user's own account.
type AccountHandler struct {
	svc     account.Service
	jar     *cookies.Jar
	origins *Origins
}

func NewAccountHandler(svc account.Service, jar *cookies.Jar, origins *Origins) *AccountHandler {
	return &AccountHandler{svc: svc, jar: jar, origins: origins}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "get_account_success", "Account retrieved successfully.", u)
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	var req domain.UpdateAccountRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, "update_account_success", "Account data updated successfully", u)
}

func (h *AccountHandler) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	if err := h.svc.RequestDeletion(r.Context(), id, h.origins.APIBase(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, "deletion_request_accepted", "Deletion request accepted, confirm email.", nil)
}

// ConfirmDeletion is the target of the link in the deletion email. It needs no
// access token: possession of the emailed token is the proof.
func (h *AccountHandler) ConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("token")
	if token == "" {
		writeError(w, r, domain.ErrTokenNotFound)
		return
	}
	if err := h.svc.ConfirmDeletion(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	h.jar.Clear(w)
	const code, message = "account_deletion_success", "Account deleted successfully"
	if target, ok := h.origins.Redirect(q.Get("redirectUrl")); ok {
		h.jar.SetFlag(w, cookies.DeletedDialog)
		redirect(w, r, target, code)
		return
	}
	writeSuccess(w, r, http.StatusOK, code, message, nil)
}
