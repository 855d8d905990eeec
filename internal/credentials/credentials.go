// Package credentials holds the stateless input rules applied before any
// account lookup.
package credentials

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the whole password policy.
const MinPasswordLength = 8

var validate = validator.New()

func IsPasswordStrong(password string) bool {
	return password != "" && len(password) >= MinPasswordLength
}

// IsEmail checks syntax only; it never resolves the domain.
func IsEmail(email string) bool {
	if strings.TrimSpace(email) != email {
		return false
	}
	return validate.Var(email, "required,email") == nil
}
