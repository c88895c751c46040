// Package transport defines the mail delivery interface and its
// implementations. The dispatch engine invokes a Transport once per
// recipient and classifies each outcome independently.
package transport

import (
	"context"
	"time"
)

// Transport delivers a single email message.
type Transport interface {
	// Send delivers a message and returns a delivery result.
	Send(ctx context.Context, msg *Message) (*Result, error)
	// Name returns the transport's identifier (e.g., "smtp", "sendgrid").
	Name() string
	// HealthCheck verifies the transport is reachable and functional.
	HealthCheck(ctx context.Context) error
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a provider API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Message is a single outbound email. To holds exactly one recipient; the
// dispatch engine never batches recipients into one send.
type Message struct {
	ID       string
	From     string
	To       string
	Subject  string
	Headers  map[string]string
	TextBody string
	HTMLBody string
}

// Result contains the outcome of a delivery attempt.
type Result struct {
	MessageID string
	Status    Status
	Timestamp time.Time
	Metadata  map[string]string
}

// Status represents the outcome of a delivery.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)
