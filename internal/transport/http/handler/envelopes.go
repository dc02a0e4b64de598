package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/validate"
	"github.com/go-auth-sessions/internal/transport/http/middleware"
)

const maxBodyBytes = 1 << 20

// Envelope is the shape of every JSON response. Error carries the HTTP status
// text on failures and is null on success.
type Envelope struct {
	Status  int         `json:"status"`
	Error   *string     `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Data    interface{} `json:"data"`
}

// TokenData is the payload of login and refresh responses.
type TokenData struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, code, message string, data interface{}) {
	middleware.RecordCode(r, code)
	writeJSON(w, status, Envelope{Status: status, Message: message, Code: code, Data: data})
}

// redirect sends a 302 and still counts code as the outcome of the request.
func redirect(w http.ResponseWriter, r *http.Request, target, code string) {
	middleware.RecordCode(r, code)
	http.Redirect(w, r, target, http.StatusFound)
}

// writeError maps err onto a status and envelope. Coded domain errors keep
// their code and message; anything unrecognised becomes a logged 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := describe(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	middleware.RecordCode(r, code)
	text := http.StatusText(status)
	writeJSON(w, status, Envelope{Status: status, Error: &text, Message: message, Code: code})
}

func describe(err error) (int, string, string) {
	var de *domain.Error
	if errors.As(err, &de) {
		return statusFor(de.Kind), de.Code, de.Message
	}
	switch status := statusFor(err); status {
	case http.StatusInternalServerError:
		return status, "internal_error", "Internal server error"
	default:
		return status, kindCodes[status], err.Error()
	}
}

var kindCodes = map[int]string{
	http.StatusNotFound:     "not_found",
	http.StatusConflict:     "conflict",
	http.StatusUnauthorized: "unauthorized",
	http.StatusForbidden:    "forbidden",
	http.StatusBadRequest:   "bad_request",
	http.StatusGone:         "gone",
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and runs its validate tags.
// Both failure modes surface as validation_error.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return domain.Validation("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return domain.Validation(err.Error())
	}
	return nil
}

func userID(r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}
