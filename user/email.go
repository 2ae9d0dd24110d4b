package user

import (
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidEmail is returned for values that are not a bare email address.
var ErrInvalidEmail = errors.New("invalid email address")

var lower = cases.Lower(language.Und)

// NormalizeEmail trims surrounding space and lower-cases email.
func NormalizeEmail(email string) string {
	return lower.String(strings.TrimSpace(email))
}

// ValidateEmail normalizes email and checks that it is a bare address
// (no display name) with a dotted domain.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || len(normalized) > 254 {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized || addr.Name != "" {
		return "", ErrInvalidEmail
	}

	local, domain, ok := strings.Cut(normalized, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return "", ErrInvalidEmail
	}
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return "", ErrInvalidEmail
	}

	return normalized, nil
}
