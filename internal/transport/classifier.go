package transport

import (
	"errors"
	"strings"
)

// TransportError wraps a delivery error with classification metadata.
type TransportError struct {
	// Transport is the name of the transport that returned the error.
	Transport string
	// Code is the HTTP status or SMTP reply code, when known.
	Code int
	// Message is the error description from the remote side.
	Message string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *TransportError) Error() string {
	return e.Transport + ": " + e.Message
}

// IsPermanent returns true if the error is a permanent failure that a retry
// cannot fix (bad address, rejected recipient).
func IsPermanent(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Permanent
	}
	return false
}

// IsTransient returns true if the error may succeed on retry.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return !te.Permanent
	}
	// Unknown errors are treated as transient to avoid losing mail.
	return true
}

// ClassifyHTTPError creates a TransportError from an HTTP status code and
// response body, classifying it as permanent or transient.
func ClassifyHTTPError(transportName string, statusCode int, body string) *TransportError {
	te := &TransportError{
		Transport: transportName,
		Code:      statusCode,
		Message:   body,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		// Not an error.
		return nil

	case statusCode == 400:
		te.Permanent = containsPermanentIndicator(body)

	case statusCode == 401, statusCode == 403, statusCode == 404:
		te.Permanent = true

	case statusCode == 429:
		// Rate limited - always transient.
		te.Permanent = false

	case statusCode >= 500:
		te.Permanent = false

	default:
		te.Permanent = statusCode >= 400 && statusCode < 500
	}

	return te
}

// ClassifySMTPError creates a TransportError from an SMTP reply code.
// 5xx replies are permanent, 4xx are transient.
func ClassifySMTPError(code int, message string) *TransportError {
	return &TransportError{
		Transport: "smtp",
		Code:      code,
		Message:   message,
		Permanent: code >= 500,
	}
}

// containsPermanentIndicator checks if a 400 response body indicates a
// permanent failure (e.g., invalid recipient, bad request that won't change).
func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid recipient",
		"invalid email",
		"does not exist",
		"mailbox not found",
		"recipient rejected",
		"bad request",
		"validation error",
		"invalid address",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
