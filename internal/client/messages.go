package client

const genericMessage = "Something went wrong. Please try again."

var messages = map[string]string{
	"user_registered_success":         "Account created. Check your inbox to verify your email.",
	"email_verify_success":            "Your email is verified. You can sign in now.",
	"login_success":                   "Welcome back!",
	"signout_success":                 "You have been signed out.",
	"deletion_request_accepted":       "Check your inbox to confirm the account deletion.",
	"account_deletion_success":        "Your account has been deleted.",
	"password_update_success":         "Your password has been updated.",
	"password_reset_request_accepted": "Check your inbox for a link to reset your password.",
	"update_account_success":          "Your account has been updated.",
	"email_already_used":              "An account with this email already exists.",
	"email_not_verified":              "Verify your email before signing in.",
	"user_not_found":                  "No account matches that email.",
	"invalid_password":                "The password is incorrect.",
	"equal_passwords":                 "The new password must differ from the current one.",
	"existing_password_reset_request": "A reset link was already sent. Use it or wait for it to expire.",
	"existing_deletion_request":       "A deletion link was already sent. Use it or wait for it to expire.",
	"token_not_found":                 "This link is invalid or was already used.",
	"token_expired":                   "This link has expired. Request a new one.",
	"invalid_token":                   "This link cannot be used here.",
	"no_refresh_provided":             "Please sign in.",
	"invalid_refresh":                 "Your session has ended. Please sign in again.",
	"refresh_expired":                 "Your session has expired. Please sign in again.",
	"unauthorized":                    "Please sign in.",
	"too_many_requests":               "Too many attempts. Wait a moment and try again.",
	"verification_email_failed":       "We could not send the verification email. Try again later.",
	"email_delivery_failed":           "We could not send the email. Try again later.",
}

// Message returns the user-facing text for a response code, or a generic
// message for codes it does not know.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return genericMessage
}
