package validator

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailValidator checks addresses against the platform's institutional
// domain. Registration is restricted to student addresses.
type EmailValidator struct {
	allowedDomain string
}

// NewEmailValidator creates a validator for the given domain, e.g.
// "etudiant.cesi.fr"
func NewEmailValidator(allowedDomain string) *EmailValidator {
	return &EmailValidator{allowedDomain: strings.ToLower(allowedDomain)}
}

// Validate checks the address shape and the institutional domain
func (v *EmailValidator) Validate(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	if v.allowedDomain != "" && !strings.HasSuffix(email, "@"+v.allowedDomain) {
		return fmt.Errorf("email must be an @%s address", v.allowedDomain)
	}
	return nil
}

// Normalize returns the canonical form used for storage and lookups
func Normalize(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
