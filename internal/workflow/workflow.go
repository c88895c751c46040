// Package workflow orchestrates the double opt-in subscription lifecycle:
// subscribe, confirm, unsubscribe. Every transition mutates exactly one
// subscriber record through an atomic compare-and-swap, so concurrent
// requests on the same subscriber (a double-clicked confirm link, say)
// resolve by one side losing the swap harmlessly.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/metrics"
	"github.com/mbellec/diocese-newsletter/internal/subscriber"
	"github.com/mbellec/diocese-newsletter/internal/token"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// Workflow errors surfaced to the confirming user. Each maps onto a
// distinguishable reason so the UI can offer "resend confirmation" on
// expiry specifically.
var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrNotPending   = errors.New("subscription is not awaiting confirmation")
	ErrTokenExpired = token.ErrExpired
	ErrTokenInvalid = token.ErrMismatch
)

// Workflow drives subscriber state transitions.
type Workflow struct {
	store    subscriber.Store
	issuer   *token.Issuer
	composer *compose.Composer
	mail     transport.Transport
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Workflow. The transport is used only for confirmation
// emails; batch notifications go through the dispatch engine.
func New(
	store subscriber.Store,
	issuer *token.Issuer,
	composer *compose.Composer,
	mail transport.Transport,
	log zerolog.Logger,
) *Workflow {
	return &Workflow{
		store:    store,
		issuer:   issuer,
		composer: composer,
		mail:     mail,
		log:      log,
		now:      time.Now,
	}
}

// Subscribe handles a subscription request for email. The outcome depends on
// the existing record:
//
//   - no record: a pending subscriber is created and a confirmation email sent
//   - pending: the token is re-issued (invalidating the old one) and the
//     confirmation email re-sent, so a lost email can be requested again
//   - active: success with no mail, to avoid duplicate confirmation spam
//   - unsubscribed: treated as a fresh subscription; the record re-opens
//     pending with a new token and a full re-opt-in is required
func (w *Workflow) Subscribe(ctx context.Context, email, firstName, language string) error {
	email = subscriber.NormalizeEmail(email)
	if !subscriber.ValidEmail(email) {
		return ErrInvalidEmail
	}
	if language == "" {
		language = compose.DefaultLocale
	}

	sub, err := w.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		return w.subscribeNew(ctx, email, firstName, language)
	case err != nil:
		return fmt.Errorf("find subscriber: %w", err)
	}

	switch sub.State {
	case subscriber.StateActive:
		w.log.Debug().Str("email", email).Msg("subscribe for active address, no-op")
		return nil
	case subscriber.StatePending, subscriber.StateUnsubscribed:
		return w.reopenPending(ctx, sub)
	default:
		return fmt.Errorf("subscriber %s in unknown state %q", sub.ID, sub.State)
	}
}

// subscribeNew inserts a pending record and sends the opt-in email. If the
// insert loses a unique-email race the request is retried against the now
// existing record.
func (w *Workflow) subscribeNew(ctx context.Context, email, firstName, language string) error {
	tok, expiresAt, err := w.issuer.Issue()
	if err != nil {
		return err
	}

	sub := &subscriber.Subscriber{
		ID:                uuid.New(),
		Email:             email,
		FirstName:         firstName,
		Language:          language,
		State:             subscriber.StatePending,
		ConfirmationToken: tok,
		TokenExpiresAt:    expiresAt,
		CreatedAt:         w.now().UTC(),
	}

	if err := w.store.Insert(ctx, sub); err != nil {
		if errors.Is(err, subscriber.ErrDuplicateEmail) {
			return w.Subscribe(ctx, email, firstName, language)
		}
		return err
	}

	metrics.SubscriptionsTotal.WithLabelValues("subscribed").Inc()
	w.log.Info().Str("email", email).Str("language", language).Msg("subscriber created, confirmation pending")

	return w.sendConfirmation(ctx, sub)
}

// reopenPending re-issues the token for a pending or unsubscribed record and
// resends the confirmation email. Issuing replaces the stored token, so any
// previously emailed link stops working.
func (w *Workflow) reopenPending(ctx context.Context, sub *subscriber.Subscriber) error {
	tok, expiresAt, err := w.issuer.Issue()
	if err != nil {
		return err
	}

	updated, err := w.store.CompareAndSwapState(ctx, sub.ID, sub.State, subscriber.Update{
		State:             subscriber.StatePending,
		ConfirmationToken: &tok,
		TokenExpiresAt:    &expiresAt,
	})
	if err != nil {
		if errors.Is(err, subscriber.ErrStateConflict) {
			// The record moved under us; re-run against the fresh state.
			return w.Subscribe(ctx, sub.Email, sub.FirstName, sub.Language)
		}
		return fmt.Errorf("reissue token: %w", err)
	}

	metrics.SubscriptionsTotal.WithLabelValues("reissued").Inc()
	w.log.Info().Str("email", sub.Email).Msg("confirmation token re-issued")

	return w.sendConfirmation(ctx, updated)
}

// sendConfirmation composes and sends the opt-in email for the subscriber's
// outstanding token.
func (w *Workflow) sendConfirmation(ctx context.Context, sub *subscriber.Subscriber) error {
	rendered, err := w.composer.Confirmation(sub.Language, sub.FirstName, sub.ConfirmationToken)
	if err != nil {
		return err
	}

	msg := &transport.Message{
		ID:       uuid.New().String(),
		To:       sub.Email,
		Subject:  rendered.Subject,
		TextBody: rendered.TextBody,
		HTMLBody: rendered.HTMLBody,
	}

	if _, err := w.mail.Send(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("email", sub.Email).Msg("confirmation email send failed")
		return fmt.Errorf("send confirmation email: %w", err)
	}

	w.log.Info().Str("email", sub.Email).Msg("confirmation email sent")
	return nil
}

// Confirm validates the presented token for the subscriber and, on success,
// transitions pending → active, stamping ConfirmedAt and clearing the token.
// Fails with ErrNotPending when the record is not awaiting confirmation,
// ErrTokenExpired past the validity window, and ErrTokenInvalid otherwise.
func (w *Workflow) Confirm(ctx context.Context, id uuid.UUID, presented string) (*subscriber.Subscriber, error) {
	sub, err := w.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.State != subscriber.StatePending {
		return nil, ErrNotPending
	}

	if err := w.issuer.Validate(sub.ConfirmationToken, sub.TokenExpiresAt, presented); err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	confirmedAt := w.now().UTC()
	cleared := ""
	updated, err := w.store.CompareAndSwapState(ctx, id, subscriber.StatePending, subscriber.Update{
		State:             subscriber.StateActive,
		ConfirmationToken: &cleared,
		ConfirmedAt:       &confirmedAt,
	})
	if err != nil {
		if errors.Is(err, subscriber.ErrStateConflict) {
			// Lost a double-confirm race; the other request won.
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("confirm subscriber: %w", err)
	}

	metrics.ConfirmationsTotal.WithLabelValues("confirmed").Inc()
	w.log.Info().Str("email", updated.Email).Msg("subscription confirmed")
	return updated, nil
}

// ConfirmByToken resolves the subscriber holding the presented token and
// confirms it. The public confirm link carries only the token, so this is
// the entry point the HTTP surface uses.
func (w *Workflow) ConfirmByToken(ctx context.Context, presented string) (*subscriber.Subscriber, error) {
	sub, err := w.store.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return w.Confirm(ctx, sub.ID, presented)
}

// Unsubscribe moves the record for email to unsubscribed, stamping
// UnsubscribedAt. Allowed from pending or active. Idempotent: an already
// unsubscribed record succeeds silently with no second timestamp write.
func (w *Workflow) Unsubscribe(ctx context.Context, email string) error {
	email = subscriber.NormalizeEmail(email)

	sub, err := w.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return w.unsubscribe(ctx, sub)
}

// UnsubscribeByID is the identifier-keyed variant of Unsubscribe.
func (w *Workflow) UnsubscribeByID(ctx context.Context, id uuid.UUID) error {
	sub, err := w.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return w.unsubscribe(ctx, sub)
}

func (w *Workflow) unsubscribe(ctx context.Context, sub *subscriber.Subscriber) error {
	if sub.State == subscriber.StateUnsubscribed {
		return nil
	}

	unsubscribedAt := w.now().UTC()
	_, err := w.store.CompareAndSwapState(ctx, sub.ID, sub.State, subscriber.Update{
		State:          subscriber.StateUnsubscribed,
		UnsubscribedAt: &unsubscribedAt,
	})
	if err != nil {
		if errors.Is(err, subscriber.ErrStateConflict) {
			// Re-read: a concurrent request may already have unsubscribed.
			fresh, findErr := w.store.FindByID(ctx, sub.ID)
			if findErr != nil {
				return findErr
			}
			if fresh.State == subscriber.StateUnsubscribed {
				return nil
			}
			return w.unsubscribe(ctx, fresh)
		}
		return fmt.Errorf("unsubscribe: %w", err)
	}

	metrics.SubscriptionsTotal.WithLabelValues("unsubscribed").Inc()
	w.log.Info().Str("email", sub.Email).Msg("subscriber unsubscribed")
	return nil
}
