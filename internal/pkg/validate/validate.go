package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom rules are registered in init.
var v = validator.New()

const passwordSpecials = "#?!@$%^&*-"

func init() {
	_ = v.RegisterValidation("password", isStrongPassword)
}

// isStrongPassword requires 8..128 characters with at least one upper-case
// letter, one lower-case letter, one digit and one of #?!@$%^&*-.
func isStrongPassword(fl validator.FieldLevel) bool {
	return StrongPassword(fl.Field().String())
}

func StrongPassword(s string) bool {
	if n := len([]rune(s)); n < 8 || n > 128 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "password" {
		return fmt.Sprintf("field '%s' needs 8-128 characters with an upper-case letter, a lower-case letter, a number and one of %s", fe.Field(), passwordSpecials)
	}
	return fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
}
