// Package subscriber defines the newsletter subscriber model, its lifecycle
// states, and the store interface the rest of the engine depends on.
package subscriber

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a subscriber.
type State string

const (
	// StatePending means the subscriber has asked to join but has not yet
	// confirmed via the emailed token.
	StatePending State = "pending"
	// StateActive means the subscriber confirmed and receives notifications.
	StateActive State = "active"
	// StateUnsubscribed is terminal. Re-subscribing creates a fresh opt-in
	// cycle back through pending; no other transition leaves this state.
	StateUnsubscribed State = "unsubscribed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateActive, StateUnsubscribed:
		return true
	}
	return false
}

// Subscriber is a single newsletter recipient.
//
// Email is stored normalized (trimmed, lower-cased) and is unique across all
// subscribers. While the subscriber is pending, ConfirmationToken holds the
// outstanding opt-in token and TokenExpiresAt its expiry; both are cleared
// on confirmation. A subscriber holds at most one outstanding token.
type Subscriber struct {
	ID                uuid.UUID
	Email             string
	FirstName         string
	Language          string
	State             State
	ConfirmationToken string
	TokenExpiresAt    time.Time
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
	UnsubscribedAt    *time.Time
}

// Store errors. Callers distinguish them with errors.Is.
var (
	// ErrNotFound is returned when no subscriber matches the lookup key.
	ErrNotFound = errors.New("subscriber not found")
	// ErrDuplicateEmail is returned by Insert when the normalized email
	// already exists.
	ErrDuplicateEmail = errors.New("email already subscribed")
	// ErrStateConflict is returned by CompareAndSwapState when the record's
	// current state does not match the expected state. A lost CAS race is
	// reported with this error, never by corrupting the record.
	ErrStateConflict = errors.New("subscriber state conflict")
)

// Update carries the fields CompareAndSwapState writes when the expected
// state matches. Nil pointer fields are left untouched.
type Update struct {
	State             State
	ConfirmationToken *string
	TokenExpiresAt    *time.Time
	ConfirmedAt       *time.Time
	UnsubscribedAt    *time.Time
}

// Store is the durable subscriber record store.
//
// CompareAndSwapState must be atomic per record: the update applies only if
// the stored state equals expected, otherwise ErrStateConflict is returned
// and nothing changes. No operation spans more than one record.
type Store interface {
	Insert(ctx context.Context, sub *Subscriber) error
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Subscriber, error)
	FindByToken(ctx context.Context, token string) (*Subscriber, error)
	CompareAndSwapState(ctx context.Context, id uuid.UUID, expected State, upd Update) (*Subscriber, error)
	// ListActiveByLanguages returns all active subscribers whose language is
	// in languages. An empty languages slice means all languages.
	ListActiveByLanguages(ctx context.Context, languages []string) ([]Subscriber, error)
}
