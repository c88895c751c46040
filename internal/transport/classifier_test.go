package transport

import (
	"errors"
	"testing"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		body          string
		wantNil       bool
		wantPermanent bool
	}{
		{"200 is not an error", 200, "", true, false},
		{"202 is not an error", 202, "", true, false},
		{"400 with invalid recipient is permanent", 400, "invalid recipient address", false, true},
		{"400 with generic message is transient", 400, "something odd", false, false},
		{"401 is permanent", 401, "unauthorized", false, true},
		{"403 is permanent", 403, "forbidden", false, true},
		{"404 is permanent", 404, "not found", false, true},
		{"429 is transient", 429, "rate limited", false, false},
		{"500 is transient", 500, "server error", false, false},
		{"503 is transient", 503, "unavailable", false, false},
		{"418 falls back to permanent 4xx", 418, "teapot", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := ClassifyHTTPError("sendgrid", tt.statusCode, tt.body)
			if tt.wantNil {
				if te != nil {
					t.Fatalf("expected nil for status %d, got %v", tt.statusCode, te)
				}
				return
			}
			if te == nil {
				t.Fatalf("expected error for status %d", tt.statusCode)
			}
			if te.Permanent != tt.wantPermanent {
				t.Errorf("Permanent = %v, expected %v", te.Permanent, tt.wantPermanent)
			}
			if te.Code != tt.statusCode {
				t.Errorf("Code = %d, expected %d", te.Code, tt.statusCode)
			}
		})
	}
}

func TestClassifySMTPError(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantPermanent bool
	}{
		{"550 mailbox unavailable is permanent", 550, true},
		{"551 user not local is permanent", 551, true},
		{"421 service not available is transient", 421, false},
		{"450 mailbox busy is transient", 450, false},
		{"452 insufficient storage is transient", 452, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := ClassifySMTPError(tt.code, "reply text")
			if te.Permanent != tt.wantPermanent {
				t.Errorf("Permanent = %v, expected %v", te.Permanent, tt.wantPermanent)
			}
		})
	}
}

func TestIsPermanentIsTransient(t *testing.T) {
	permanent := &TransportError{Transport: "smtp", Code: 550, Permanent: true}
	transient := &TransportError{Transport: "smtp", Code: 421, Permanent: false}

	if !IsPermanent(permanent) {
		t.Error("IsPermanent() = false for a permanent error")
	}
	if IsPermanent(transient) {
		t.Error("IsPermanent() = true for a transient error")
	}
	if !IsTransient(transient) {
		t.Error("IsTransient() = false for a transient error")
	}

	// Unknown errors default to transient so no mail is dropped.
	if !IsTransient(errors.New("connection reset")) {
		t.Error("IsTransient() = false for an unclassified error")
	}
	if IsPermanent(errors.New("connection reset")) {
		t.Error("IsPermanent() = true for an unclassified error")
	}
}

func TestTransportError_Error(t *testing.T) {
	te := &TransportError{Transport: "mailgun", Code: 404, Message: "domain not found"}
	if got := te.Error(); got != "mailgun: domain not found" {
		t.Errorf("Error() = %q", got)
	}
}
