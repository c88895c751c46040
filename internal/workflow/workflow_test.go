package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/subscriber"
	"github.com/mbellec/diocese-newsletter/internal/token"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// memStore is an in-memory subscriber.Store used by workflow tests.
type memStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*subscriber.Subscriber
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[uuid.UUID]*subscriber.Subscriber)}
}

func (s *memStore) Insert(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == sub.Email {
			return subscriber.ErrDuplicateEmail
		}
	}
	cp := *sub
	s.byID[sub.ID] = &cp
	return nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.byID {
		if sub.Email == email {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) FindByToken(_ context.Context, tok string) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.byID {
		if sub.ConfirmationToken != "" && sub.ConfirmationToken == tok {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (s *memStore) CompareAndSwapState(_ context.Context, id uuid.UUID, expected subscriber.State, upd subscriber.Update) (*subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	if sub.State != expected {
		return nil, subscriber.ErrStateConflict
	}
	sub.State = upd.State
	if upd.ConfirmationToken != nil {
		sub.ConfirmationToken = *upd.ConfirmationToken
	}
	if upd.TokenExpiresAt != nil {
		sub.TokenExpiresAt = *upd.TokenExpiresAt
	}
	if upd.ConfirmedAt != nil {
		sub.ConfirmedAt = upd.ConfirmedAt
	}
	if upd.UnsubscribedAt != nil {
		sub.UnsubscribedAt = upd.UnsubscribedAt
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) ListActiveByLanguages(_ context.Context, languages []string) ([]subscriber.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscriber.Subscriber
	for _, sub := range s.byID {
		if sub.State != subscriber.StateActive {
			continue
		}
		if len(languages) > 0 {
			match := false
			for _, l := range languages {
				if sub.Language == l {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *sub)
	}
	return out, nil
}

// captureTransport records sent messages and can be told to fail.
type captureTransport struct {
	mu       sync.Mutex
	messages []*transport.Message
	err      error
}

func (t *captureTransport) Send(_ context.Context, msg *transport.Message) (*transport.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	t.messages = append(t.messages, msg)
	return &transport.Result{MessageID: msg.ID, Status: transport.StatusSent, Timestamp: time.Now()}, nil
}

func (t *captureTransport) Name() string                        { return "capture" }
func (t *captureTransport) HealthCheck(_ context.Context) error { return nil }

func (t *captureTransport) sent() []*transport.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.Message(nil), t.messages...)
}

func newTestWorkflow(store subscriber.Store, mail transport.Transport, opts ...token.Option) *Workflow {
	issuer := token.NewIssuer(opts...)
	composer := compose.NewComposer("https://diocese.example.org", "Diocèse Test")
	return New(store, issuer, composer, mail, zerolog.Nop())
}

func TestSubscribe_NewAddress(t *testing.T) {
	store := newMemStore()
	mail := &captureTransport{}
	wf := newTestWorkflow(store, mail)
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "Marie.Dupont@Example.org ", "Marie", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	sub, err := store.FindByEmail(ctx, "marie.dupont@example.org")
	if err != nil {
		t.Fatalf("expected normalized record, got %v", err)
	}
	if sub.State != subscriber.StatePending {
		t.Errorf("state = %s, expected pending", sub.State)
	}
	if sub.ConfirmationToken == "" {
		t.Error("expected an outstanding confirmation token")
	}
	if sub.ConfirmedAt != nil {
		t.Error("confirmedAt should be unset before confirmation")
	}

	msgs := mail.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(msgs))
	}
	if msgs[0].To != "marie.dupont@example.org" {
		t.Errorf("confirmation sent to %s", msgs[0].To)
	}
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"no at sign", "not-an-address"},
		{"display name", "Jo <jo@example.org>"},
		{"spaces inside", "jo do@example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := newTestWorkflow(newMemStore(), &captureTransport{})
			err := wf.Subscribe(context.Background(), tt.email, "", "fr")
			if !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("Subscribe(%q) error = %v, expected ErrInvalidEmail", tt.email, err)
			}
		})
	}
}

func TestSubscribe_PendingReissuesToken(t *testing.T) {
	store := newMemStore()
	mail := &captureTransport{}
	wf := newTestWorkflow(store, mail)
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "p@example.org", "", "fr"); err != nil {
		t.Fatalf("first Subscribe() error = %v", err)
	}
	first, _ := store.FindByEmail(ctx, "p@example.org")

	if err := wf.Subscribe(ctx, "p@example.org", "", "fr"); err != nil {
		t.Fatalf("second Subscribe() error = %v", err)
	}
	second, _ := store.FindByEmail(ctx, "p@example.org")

	if second.State != subscriber.StatePending {
		t.Errorf("state = %s, expected pending", second.State)
	}
	if second.ConfirmationToken == first.ConfirmationToken {
		t.Error("expected a fresh token on re-subscribe")
	}
	if len(mail.sent()) != 2 {
		t.Errorf("expected confirmation resent, got %d emails", len(mail.sent()))
	}

	// The superseded token no longer confirms.
	if _, err := wf.Confirm(ctx, first.ID, first.ConfirmationToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Confirm() with stale token error = %v, expected ErrTokenInvalid", err)
	}
}

func TestSubscribe_ActiveIsNoOp(t *testing.T) {
	store := newMemStore()
	mail := &captureTransport{}
	wf := newTestWorkflow(store, mail)
	ctx := context.Background()

	mustSubscribeAndConfirm(t, wf, store, "a@example.org")
	before := len(mail.sent())

	if err := wf.Subscribe(ctx, "a@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() on active error = %v", err)
	}

	sub, _ := store.FindByEmail(ctx, "a@example.org")
	if sub.State != subscriber.StateActive {
		t.Errorf("state = %s, expected active to stay active", sub.State)
	}
	if len(mail.sent()) != before {
		t.Error("subscribe on active address must not send mail")
	}
}

func TestConfirm_HappyPath(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "c@example.org", "Claire", "en"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	pending, _ := store.FindByEmail(ctx, "c@example.org")

	confirmed, err := wf.Confirm(ctx, pending.ID, pending.ConfirmationToken)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.State != subscriber.StateActive {
		t.Errorf("state = %s, expected active", confirmed.State)
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("expected confirmedAt to be stamped")
	}
	if confirmed.ConfirmationToken != "" {
		t.Error("expected token cleared on confirmation")
	}
}

func TestConfirm_SecondAttemptNotPending(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "d@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	pending, _ := store.FindByEmail(ctx, "d@example.org")

	if _, err := wf.Confirm(ctx, pending.ID, pending.ConfirmationToken); err != nil {
		t.Fatalf("first Confirm() error = %v", err)
	}
	_, err := wf.Confirm(ctx, pending.ID, pending.ConfirmationToken)
	if !errors.Is(err, ErrNotPending) {
		t.Errorf("second Confirm() error = %v, expected ErrNotPending", err)
	}
}

func TestConfirm_ExpiredToken(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	wf := newTestWorkflow(store, &captureTransport{},
		token.WithTTL(time.Hour),
		token.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "e@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	pending, _ := store.FindByEmail(ctx, "e@example.org")

	// Move the clock past the validity window.
	now = now.Add(2 * time.Hour)

	_, err := wf.Confirm(ctx, pending.ID, pending.ConfirmationToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Confirm() error = %v, expected ErrTokenExpired", err)
	}

	// The record is still pending; a new subscribe issues a fresh token.
	sub, _ := store.FindByEmail(ctx, "e@example.org")
	if sub.State != subscriber.StatePending {
		t.Errorf("state = %s, expected pending after expired confirm", sub.State)
	}
}

func TestConfirm_WrongToken(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "f@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	pending, _ := store.FindByEmail(ctx, "f@example.org")

	_, err := wf.Confirm(ctx, pending.ID, "0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Confirm() error = %v, expected ErrTokenInvalid", err)
	}
}

func TestConfirmByToken(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "g@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	pending, _ := store.FindByEmail(ctx, "g@example.org")

	confirmed, err := wf.ConfirmByToken(ctx, pending.ConfirmationToken)
	if err != nil {
		t.Fatalf("ConfirmByToken() error = %v", err)
	}
	if confirmed.ID != pending.ID {
		t.Error("ConfirmByToken resolved the wrong subscriber")
	}

	// Unknown token maps to the invalid reason, not a store error.
	if _, err := wf.ConfirmByToken(ctx, "deadbeef"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ConfirmByToken() with unknown token error = %v, expected ErrTokenInvalid", err)
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	mustSubscribeAndConfirm(t, wf, store, "h@example.org")

	if err := wf.Unsubscribe(ctx, "h@example.org"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	first, _ := store.FindByEmail(ctx, "h@example.org")
	if first.State != subscriber.StateUnsubscribed {
		t.Fatalf("state = %s, expected unsubscribed", first.State)
	}
	if first.UnsubscribedAt == nil {
		t.Fatal("expected unsubscribedAt to be stamped")
	}

	if err := wf.Unsubscribe(ctx, "h@example.org"); err != nil {
		t.Fatalf("second Unsubscribe() error = %v", err)
	}
	second, _ := store.FindByEmail(ctx, "h@example.org")
	if !second.UnsubscribedAt.Equal(*first.UnsubscribedAt) {
		t.Error("second unsubscribe must not rewrite unsubscribedAt")
	}
}

func TestUnsubscribe_FromPending(t *testing.T) {
	store := newMemStore()
	wf := newTestWorkflow(store, &captureTransport{})
	ctx := context.Background()

	if err := wf.Subscribe(ctx, "i@example.org", "", "fr"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := wf.Unsubscribe(ctx, "i@example.org"); err != nil {
		t.Fatalf("Unsubscribe() from pending error = %v", err)
	}

	sub, _ := store.FindByEmail(ctx, "i@example.org")
	if sub.State != subscriber.StateUnsubscribed {
		t.Errorf("state = %s, expected unsubscribed", sub.State)
	}
}

func TestResubscribeAfterUnsubscribe_ReopensPending(t *testing.T) {
	store := newMemStore()
	mail := &captureTransport{}
	wf := newTestWorkflow(store, mail)
	ctx := context.Background()

	mustSubscribeAndConfirm(t, wf, store, "j@example.org")
	if err := wf.Unsubscribe(ctx, "j@example.org"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if err := wf.Subscribe(ctx, "j@example.org", "", "fr"); err != nil {
		t.Fatalf("re-Subscribe() error = %v", err)
	}

	sub, _ := store.FindByEmail(ctx, "j@example.org")
	if sub.State != subscriber.StatePending {
		t.Errorf("state = %s, expected pending after re-subscribe", sub.State)
	}
	if sub.ConfirmationToken == "" {
		t.Error("expected a fresh token for the new opt-in cycle")
	}
}

func TestSubscribe_SendFailureSurfaces(t *testing.T) {
	store := newMemStore()
	mail := &captureTransport{err: errors.New("smtp unreachable")}
	wf := newTestWorkflow(store, mail)

	err := wf.Subscribe(context.Background(), "k@example.org", "", "fr")
	if err == nil {
		t.Fatal("expected send failure to surface")
	}

	// The pending record still exists; the user can retry and get a new mail.
	sub, findErr := store.FindByEmail(context.Background(), "k@example.org")
	if findErr != nil {
		t.Fatalf("expected pending record to survive send failure, got %v", findErr)
	}
	if sub.State != subscriber.StatePending {
		t.Errorf("state = %s, expected pending", sub.State)
	}
}

func mustSubscribeAndConfirm(t *testing.T, wf *Workflow, store *memStore, email string) {
	t.Helper()
	ctx := context.Background()
	if err := wf.Subscribe(ctx, email, "", "fr"); err != nil {
		t.Fatalf("Subscribe(%s) error = %v", email, err)
	}
	pending, err := store.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("FindByEmail(%s) error = %v", email, err)
	}
	if _, err := wf.Confirm(ctx, pending.ID, pending.ConfirmationToken); err != nil {
		t.Fatalf("Confirm(%s) error = %v", email, err)
	}
}
