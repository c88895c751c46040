package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a single recipient's delivery attempt.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// Failure reasons recorded for recipients that were never handed to the
// transport or whose call exceeded its bound.
const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

// RecipientResult is the outcome for one recipient of a batch.
type RecipientResult struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Email        string    `json:"email"`
	Outcome      Outcome   `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
}

// BatchReport summarizes a completed dispatch batch. It is returned to the
// caller and logged, never persisted; retrying failed recipients is the
// caller's decision.
type BatchReport struct {
	ContentID  string            `json:"content_id"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Recipients int               `json:"recipients"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	Results    []RecipientResult `json:"results"`
}

// Errors returns the failed recipients only.
func (r *BatchReport) Errors() []RecipientResult {
	var out []RecipientResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}
