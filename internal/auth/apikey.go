package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyVerifier validates admin API keys against a bcrypt hash loaded from
// configuration. A single key protects the admin surface; there are no
// per-user accounts.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a verifier from a bcrypt hash string.
func NewAPIKeyVerifier(hash string) (*APIKeyVerifier, error) {
	if hash == "" {
		return nil, fmt.Errorf("admin API key hash is required")
	}
	// Fail fast on malformed hashes rather than at first request.
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid admin API key hash: %w", err)
	}
	return &APIKeyVerifier{hash: []byte(hash)}, nil
}

// HashAPIKey generates a bcrypt hash for the given key, for use when
// provisioning configuration.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash API key: %w", err)
	}
	return string(hash), nil
}

// Verify checks the presented key against the stored hash.
func (v *APIKeyVerifier) Verify(key string) error {
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// BearerAuth returns an HTTP middleware that validates Bearer token
// authentication against the verifier.
func BearerAuth(verifier *APIKeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "invalid authorization format, expected Bearer <token>")
				return
			}

			if parts[1] == "" {
				writeUnauthorized(w, "empty API key")
				return
			}

			if err := verifier.Verify(parts[1]); err != nil {
				writeUnauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
