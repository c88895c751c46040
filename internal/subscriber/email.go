package subscriber

import (
	"net/mail"
	"strings"
)

// NormalizeEmail lowers and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address parses as a bare RFC 5322 address.
// Display names ("Jo <jo@x.com>") are rejected; the subscribe form collects
// the name separately.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
