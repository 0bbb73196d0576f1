package utils

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
)

// ErrNoRecipient is returned when a lead has no usable email address.
var ErrNoRecipient = errors.New("lead has no email address")

// ValidateRecipient checks that an address is present and well formed.
// No DNS or SMTP probing happens here; that belongs to lead verification.
func ValidateRecipient(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrNoRecipient
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return err
	}
	return nil
}
