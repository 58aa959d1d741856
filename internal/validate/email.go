package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail reports a malformed email address.
var ErrInvalidEmail = errors.New("invalid email format")

// emailPattern covers the common address shapes. Stricter checks happen at
// the SMTP level when codes are actually delivered.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RFC 5321 length limits.
const (
	maxEmailLen  = 254
	maxLocalLen  = 64
	maxDomainLen = 255
)

// Email validates an address and returns it trimmed and lowercased.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > maxEmailLen {
		return "", ErrStringTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return "", ErrInvalidEmail
	}
	if len(local) > maxLocalLen || len(domain) > maxDomainLen {
		return "", ErrStringTooLong
	}
	return email, nil
}
