package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrGone         = errors.New("gone")
	ErrInternal     = errors.New("internal")
)

// Error is a domain error carrying a stable machine-readable code.
// errors.Is(err, ErrNotFound) and friends match on Kind.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound            = newError(ErrNotFound, "user_not_found", "User not found")
	ErrEmailAlreadyUsed        = newError(ErrConflict, "email_already_used", "Email is already registered.")
	ErrEmailNotVerified        = newError(ErrForbidden, "email_not_verified", "Email not verified")
	ErrInvalidPassword         = newError(ErrUnauthorized, "invalid_password", "Invalid password")
	ErrVerificationEmailFailed = newError(ErrInternal, "verification_email_failed", "Failed to send verification email")
	ErrEmailDeliveryFailed     = newError(ErrInternal, "email_delivery_failed", "Failed to send email")

	ErrNoRefreshProvided = newError(ErrBadRequest, "no_refresh_provided", "No refresh token provided")
	ErrInvalidRefresh    = newError(ErrUnauthorized, "invalid_refresh", "Invalid refresh token")
	ErrRefreshExpired    = newError(ErrGone, "refresh_expired", "Refresh token expired")
	ErrUnauthenticated   = newError(ErrUnauthorized, "unauthorized", "Missing or invalid access token")

	ErrTokenNotFound = newError(ErrNotFound, "token_not_found", "Token not found")
	ErrTokenExpired  = newError(ErrGone, "token_expired", "Token expired")
	ErrInvalidToken  = newError(ErrBadRequest, "invalid_token", "Invalid token")

	ErrEqualPasswords          = newError(ErrBadRequest, "equal_passwords", "Old password and new password are the same")
	ErrExistingPasswordReset   = newError(ErrConflict, "existing_password_reset_request", "Password reset request already exists. Finish it or wait until expiration to issue a new one.")
	ErrExistingDeletionRequest = newError(ErrConflict, "existing_deletion_request", "Deletion request already exists. Finish it or wait until expiration to request a new one.")
	ErrNothingToUpdate         = newError(ErrBadRequest, "nothing_to_update", "At least one field must be provided")
)

// Validation wraps a request-shape failure as a BadRequest with the validation_error code.
func Validation(msg string) *Error {
	return newError(ErrBadRequest, "validation_error", msg)
}
