// Package token issues and validates the single-use confirmation tokens
// used by the double opt-in workflow.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// tokenBytes is the raw entropy per token. 32 bytes is well above the
	// 128-bit floor and matches the hex link length users already see.
	tokenBytes = 32

	// DefaultTTL is the confirmation window for a freshly issued token.
	DefaultTTL = 48 * time.Hour
)

// Validation errors. The workflow maps these onto user-visible reasons so
// the UI can offer "resend confirmation" on expiry specifically.
var (
	ErrExpired  = errors.New("token expired")
	ErrMismatch = errors.New("token mismatch")
)

// Issuer generates and validates confirmation tokens. The zero value is not
// usable; construct with NewIssuer.
type Issuer struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the default 48h validity window.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer with the default TTL and wall clock.
func NewIssuer(opts ...Option) *Issuer {
	i := &Issuer{
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue generates a cryptographically random token and its absolute expiry.
// The caller persists both on the subscriber record, replacing any prior
// token; issuing is what invalidates an earlier token.
func (i *Issuer) Issue() (token string, expiresAt time.Time, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), i.now().Add(i.ttl).UTC(), nil
}

// Validate checks a presented token against the stored token and expiry.
// The boundary is closed on the expiry side: a token presented exactly at
// expiresAt is already expired. Comparison is constant-time.
//
// Validate never mutates state; consuming the token is the caller's
// responsibility so a confirm can be retried safely.
func (i *Issuer) Validate(stored string, expiresAt time.Time, presented string) error {
	if !i.now().Before(expiresAt) {
		return ErrExpired
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return ErrMismatch
	}
	return nil
}
