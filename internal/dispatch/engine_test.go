package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/subscriber"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// listStore serves a fixed snapshot of active subscribers.
type listStore struct {
	active  []subscriber.Subscriber
	listErr error
}

func (s *listStore) Insert(context.Context, *subscriber.Subscriber) error { return nil }
func (s *listStore) FindByEmail(context.Context, string) (*subscriber.Subscriber, error) {
	return nil, subscriber.ErrNotFound
}
func (s *listStore) FindByID(context.Context, uuid.UUID) (*subscriber.Subscriber, error) {
	return nil, subscriber.ErrNotFound
}
func (s *listStore) FindByToken(context.Context, string) (*subscriber.Subscriber, error) {
	return nil, subscriber.ErrNotFound
}
func (s *listStore) CompareAndSwapState(context.Context, uuid.UUID, subscriber.State, subscriber.Update) (*subscriber.Subscriber, error) {
	return nil, subscriber.ErrStateConflict
}

func (s *listStore) ListActiveByLanguages(_ context.Context, languages []string) ([]subscriber.Subscriber, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(languages) == 0 {
		return s.active, nil
	}
	var out []subscriber.Subscriber
	for _, sub := range s.active {
		for _, l := range languages {
			if sub.Language == l {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

// scriptedTransport fails or stalls for selected addresses.
type scriptedTransport struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]error
	stallFor map[string]time.Duration // sleep ignoring context
}

func (t *scriptedTransport) Send(_ context.Context, msg *transport.Message) (*transport.Result, error) {
	t.mu.Lock()
	stall := t.stallFor[msg.To]
	fail := t.failFor[msg.To]
	t.mu.Unlock()

	if stall > 0 {
		time.Sleep(stall)
	}
	if fail != nil {
		return nil, fail
	}

	t.mu.Lock()
	t.sent = append(t.sent, msg.To)
	t.mu.Unlock()
	return &transport.Result{MessageID: msg.ID, Status: transport.StatusSent, Timestamp: time.Now()}, nil
}

func (t *scriptedTransport) Name() string                        { return "scripted" }
func (t *scriptedTransport) HealthCheck(_ context.Context) error { return nil }

func (t *scriptedTransport) delivered() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func activeSubscriber(email, language string) subscriber.Subscriber {
	return subscriber.Subscriber{
		ID:       uuid.New(),
		Email:    email,
		Language: language,
		State:    subscriber.StateActive,
	}
}

func testContent() compose.Content {
	return compose.Content{
		ID:    "news-42",
		Title: "Pèlerinage diocésain",
		URL:   "https://diocese.example.org/fr/actualites/pelerinage",
	}
}

func newTestEngine(store subscriber.Store, mail transport.Transport, cfg Config) *Engine {
	composer := compose.NewComposer("https://diocese.example.org", "Diocèse Test")
	return NewEngine(store, composer, mail, cfg, zerolog.Nop())
}

func TestSendBatch_AllSent(t *testing.T) {
	store := &listStore{active: []subscriber.Subscriber{
		activeSubscriber("a@example.org", "fr"),
		activeSubscriber("b@example.org", "fr"),
		activeSubscriber("c@example.org", "en"),
	}}
	mail := &scriptedTransport{}
	engine := newTestEngine(store, mail, Config{Concurrency: 2})

	report, err := engine.SendBatch(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}

	if report.Recipients != 3 || report.Sent != 3 || report.Failed != 0 {
		t.Errorf("report = %d/%d/%d, expected 3 recipients all sent",
			report.Recipients, report.Sent, report.Failed)
	}
	if len(report.Results) != 3 {
		t.Errorf("expected exactly one result per recipient, got %d", len(report.Results))
	}
	if len(mail.delivered()) != 3 {
		t.Errorf("expected 3 deliveries, got %d", len(mail.delivered()))
	}
}

func TestSendBatch_FaultIsolation(t *testing.T) {
	var subs []subscriber.Subscriber
	for _, email := range []string{
		"a@example.org", "b@example.org", "c@example.org", "d@example.org", "e@example.org",
		"f@example.org", "g@example.org", "h@example.org", "i@example.org", "bad@example.org",
	} {
		subs = append(subs, activeSubscriber(email, "fr"))
	}
	store := &listStore{active: subs}
	mail := &scriptedTransport{failFor: map[string]error{
		"bad@example.org": errors.New("550 mailbox unavailable"),
	}}
	engine := newTestEngine(store, mail, Config{Concurrency: 4})

	report, err := engine.SendBatch(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}

	if report.Sent != 9 || report.Failed != 1 {
		t.Fatalf("report = %d sent / %d failed, expected 9/1", report.Sent, report.Failed)
	}

	failures := report.Errors()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Email != "bad@example.org" {
		t.Errorf("failed recipient = %s, expected bad@example.org", failures[0].Email)
	}
	if !strings.Contains(failures[0].Reason, "550") {
		t.Errorf("failure reason %q should carry the transport error", failures[0].Reason)
	}
}

func TestSendBatch_TimeoutIsolation(t *testing.T) {
	store := &listStore{active: []subscriber.Subscriber{
		activeSubscriber("fast@example.org", "fr"),
		activeSubscriber("slow@example.org", "fr"),
		activeSubscriber("other@example.org", "fr"),
	}}
	// The stalled send sleeps through its context; the engine must still
	// report it as a timeout and finish the rest of the batch.
	mail := &scriptedTransport{stallFor: map[string]time.Duration{
		"slow@example.org": 2 * time.Second,
	}}
	engine := newTestEngine(store, mail, Config{Concurrency: 3, SendTimeout: 50 * time.Millisecond})

	start := time.Now()
	report, err := engine.SendBatch(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("batch took %v, a stalled transport must not wedge it", elapsed)
	}

	if report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("report = %d sent / %d failed, expected 2/1", report.Sent, report.Failed)
	}
	failures := report.Errors()
	if failures[0].Email != "slow@example.org" || failures[0].Reason != ReasonTimeout {
		t.Errorf("failure = %s/%s, expected slow@example.org/%s",
			failures[0].Email, failures[0].Reason, ReasonTimeout)
	}
}

func TestSendBatch_LanguageFilter(t *testing.T) {
	store := &listStore{active: []subscriber.Subscriber{
		activeSubscriber("fr1@example.org", "fr"),
		activeSubscriber("fr2@example.org", "fr"),
		activeSubscriber("en1@example.org", "en"),
	}}
	mail := &scriptedTransport{}
	engine := newTestEngine(store, mail, Config{})

	report, err := engine.SendBatch(context.Background(), testContent(), []string{"fr"})
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}

	if report.Recipients != 2 {
		t.Errorf("recipients = %d, expected 2 French subscribers", report.Recipients)
	}
	for _, to := range mail.delivered() {
		if strings.HasPrefix(to, "en") {
			t.Errorf("English subscriber %s must not receive a French-only batch", to)
		}
	}
}

func TestSendBatch_EmptySnapshot(t *testing.T) {
	engine := newTestEngine(&listStore{}, &scriptedTransport{}, Config{})

	report, err := engine.SendBatch(context.Background(), testContent(), nil)
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if report.Recipients != 0 || report.Sent != 0 || report.Failed != 0 {
		t.Errorf("expected an empty successful report, got %+v", report)
	}
}

func TestSendBatch_StoreFailureIsFatal(t *testing.T) {
	store := &listStore{listErr: errors.New("connection refused")}
	engine := newTestEngine(store, &scriptedTransport{}, Config{})

	_, err := engine.SendBatch(context.Background(), testContent(), nil)
	if err == nil {
		t.Fatal("expected a store failure to fail the batch")
	}
}

func TestSendBatch_CancelledContext(t *testing.T) {
	store := &listStore{active: []subscriber.Subscriber{
		activeSubscriber("a@example.org", "fr"),
		activeSubscriber("b@example.org", "fr"),
	}}
	mail := &scriptedTransport{}
	engine := newTestEngine(store, mail, Config{Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := engine.SendBatch(ctx, testContent(), nil)
	if err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}

	if report.Failed != 2 {
		t.Fatalf("failed = %d, expected both recipients reported", report.Failed)
	}
	for _, res := range report.Results {
		if res.Reason != ReasonCancelled {
			t.Errorf("reason = %q, expected %q for never-attempted recipient", res.Reason, ReasonCancelled)
		}
	}
	if len(mail.delivered()) != 0 {
		t.Errorf("no deliveries expected after cancellation, got %d", len(mail.delivered()))
	}
}

func TestSendBatch_PersonalizedUnsubscribeLink(t *testing.T) {
	store := &listStore{active: []subscriber.Subscriber{
		activeSubscriber("marie@example.org", "fr"),
	}}

	var captured *transport.Message
	mail := &captureOneTransport{target: &captured}
	engine := newTestEngine(store, mail, Config{})

	if _, err := engine.SendBatch(context.Background(), testContent(), nil); err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if captured == nil {
		t.Fatal("expected one message")
	}

	if !strings.Contains(captured.HTMLBody, "marie%40example.org") &&
		!strings.Contains(captured.HTMLBody, "marie@example.org") {
		t.Error("expected the recipient's own unsubscribe link in the body")
	}
	if strings.Contains(captured.HTMLBody, compose.UnsubscribePlaceholder) {
		t.Error("unsubscribe placeholder leaked into the delivered message")
	}
}

type captureOneTransport struct {
	mu     sync.Mutex
	target **transport.Message
}

func (t *captureOneTransport) Send(_ context.Context, msg *transport.Message) (*transport.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.target = msg
	return &transport.Result{MessageID: msg.ID, Status: transport.StatusSent, Timestamp: time.Now()}, nil
}

func (t *captureOneTransport) Name() string                        { return "capture" }
func (t *captureOneTransport) HealthCheck(_ context.Context) error { return nil }
