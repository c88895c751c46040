package api

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// SubscribeLimiter is the rate limiting contract the subscribe endpoint
// needs. Satisfied by auth.RateLimiter.
type SubscribeLimiter interface {
	CheckSubscribe(ctx context.Context, ip string) error
	RecordSubscribe(ctx context.Context, ip string) error
}

// clientIP extracts the client IP from the request, honoring X-Forwarded-For
// when present (the API runs behind a reverse proxy in production).
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// The first entry is the originating client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
