// Package dispatch fans a published content item out to every active,
// locale-matched subscriber. Delivery runs under a bounded worker pool with
// a per-recipient timeout; one recipient's failure or stall never cancels,
// delays, or drops another recipient's send.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/metrics"
	"github.com/mbellec/diocese-newsletter/internal/subscriber"
	"github.com/mbellec/diocese-newsletter/internal/transport"
)

// Config holds the dispatch tunables.
type Config struct {
	// Concurrency bounds the number of in-flight delivery calls. It keeps a
	// large batch from overwhelming the transport or tripping provider rate
	// limits; the exact figure is a tunable, not a contract.
	Concurrency int `mapstructure:"concurrency"`
	// SendTimeout bounds a single recipient's delivery call. A recipient
	// exceeding it is recorded as failed with reason "timeout".
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// DefaultConfig returns the default dispatch tunables.
func DefaultConfig() Config {
	return Config{
		Concurrency: 10,
		SendTimeout: 30 * time.Second,
	}
}

// Engine runs dispatch batches.
type Engine struct {
	store    subscriber.Store
	composer *compose.Composer
	mail     transport.Transport
	config   Config
	log      zerolog.Logger
}

// NewEngine creates an Engine. Zero config fields fall back to defaults.
func NewEngine(
	store subscriber.Store,
	composer *compose.Composer,
	mail transport.Transport,
	cfg Config,
	log zerolog.Logger,
) *Engine {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Engine{
		store:    store,
		composer: composer,
		mail:     mail,
		config:   cfg,
		log:      log,
	}
}

// SendBatch notifies every active subscriber matching languages about
// content, at most once each, and reports the aggregate outcome.
//
// The recipient list is snapshotted at batch start; subscriptions arriving
// mid-batch are not included and unsubscriptions mid-batch may still receive
// this send. That staleness window is accepted, not a defect. Each locale's
// message is rendered once and personalized per recipient.
//
// A store failure is fatal to the batch. A transport failure is not: it is
// recorded against its recipient and the batch continues. Failed recipients
// are not retried within the batch.
func (e *Engine) SendBatch(ctx context.Context, content compose.Content, languages []string) (*BatchReport, error) {
	start := time.Now()

	recipients, err := e.store.ListActiveByLanguages(ctx, languages)
	if err != nil {
		return nil, fmt.Errorf("snapshot recipients: %w", err)
	}

	report := &BatchReport{
		ContentID:  content.ID,
		StartedAt:  start.UTC(),
		Recipients: len(recipients),
	}

	if len(recipients) == 0 {
		e.log.Info().Str("content_id", content.ID).Msg("dispatch batch has no recipients")
		report.Duration = time.Since(start)
		return report, nil
	}

	rendered, err := e.renderLocales(content, recipients)
	if err != nil {
		return nil, err
	}

	results := e.fanOut(ctx, content, recipients, rendered)

	for _, res := range results {
		if res.Outcome == OutcomeSent {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	report.Results = results
	report.Duration = time.Since(start)

	metrics.DispatchBatchesTotal.Inc()
	metrics.DispatchBatchDuration.Observe(report.Duration.Seconds())

	e.log.Info().
		Str("content_id", content.ID).
		Int("recipients", report.Recipients).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("dispatch batch completed")

	return report, nil
}

// renderLocales renders the notification once for each locale present in
// the snapshot.
func (e *Engine) renderLocales(content compose.Content, recipients []subscriber.Subscriber) (map[string]compose.Rendered, error) {
	rendered := make(map[string]compose.Rendered)
	for _, sub := range recipients {
		if _, ok := rendered[sub.Language]; ok {
			continue
		}
		r, err := e.composer.Notification(content, sub.Language)
		if err != nil {
			return nil, fmt.Errorf("render locale %q: %w", sub.Language, err)
		}
		rendered[sub.Language] = r
	}
	return rendered, nil
}

// fanOut delivers to every recipient through a bounded worker pool and
// collects exactly one result per recipient.
func (e *Engine) fanOut(
	ctx context.Context,
	content compose.Content,
	recipients []subscriber.Subscriber,
	rendered map[string]compose.Rendered,
) []RecipientResult {
	jobs := make(chan subscriber.Subscriber)
	resultCh := make(chan RecipientResult)

	var wg sync.WaitGroup
	for range e.config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				resultCh <- e.deliverOne(ctx, content, sub, rendered[sub.Language])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sub := range recipients {
			jobs <- sub
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]RecipientResult, 0, len(recipients))
	for res := range resultCh {
		metrics.DispatchRecipientsTotal.WithLabelValues(resultLabel(res)).Inc()
		results = append(results, res)
	}
	return results
}

// deliverOne sends the personalized notification to a single recipient and
// classifies the outcome. Batch cancellation before the attempt records
// "cancelled"; an attempt that outlives its timeout records "timeout" while
// the abandoned call is left to finish on its own, avoiding an ambiguous
// kill mid-send.
func (e *Engine) deliverOne(
	ctx context.Context,
	content compose.Content,
	sub subscriber.Subscriber,
	rendered compose.Rendered,
) RecipientResult {
	result := RecipientResult{
		SubscriberID: sub.ID,
		Email:        sub.Email,
	}

	if ctx.Err() != nil {
		result.Outcome = OutcomeFailed
		result.Reason = ReasonCancelled
		return result
	}

	personal := e.composer.Personalize(rendered, sub.Language, sub.Email)
	msg := &transport.Message{
		ID:       uuid.New().String(),
		To:       sub.Email,
		Subject:  personal.Subject,
		TextBody: personal.TextBody,
		HTMLBody: personal.HTMLBody,
		Headers: map[string]string{
			"X-Content-ID": content.ID,
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.config.SendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := e.mail.Send(sendCtx, msg)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			e.log.Warn().Err(err).
				Str("content_id", content.ID).
				Str("email", sub.Email).
				Msg("recipient delivery failed")
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
			return result
		}
		result.Outcome = OutcomeSent
		return result

	case <-sendCtx.Done():
		// Transport ignored its context; don't let it wedge the batch.
		result.Outcome = OutcomeFailed
		result.Reason = ReasonTimeout
		if ctx.Err() != nil {
			result.Reason = ReasonCancelled
		}
		e.log.Warn().
			Str("content_id", content.ID).
			Str("email", sub.Email).
			Str("reason", result.Reason).
			Msg("recipient delivery abandoned")
		return result
	}
}

func resultLabel(res RecipientResult) string {
	switch {
	case res.Outcome == OutcomeSent:
		return "sent"
	case res.Reason == ReasonTimeout:
		return "timeout"
	case res.Reason == ReasonCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}
