package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mbellec/diocese-newsletter/internal/metrics"
)

// EventHandler processes a single publish event. The dispatch worker binds
// this to the dispatch engine.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt *PublishEvent) error
}

// WorkerPool manages worker goroutines that consume publish events from the
// Redis stream and hand them to the EventHandler.
type WorkerPool struct {
	client  StreamClient
	dlq     *DLQ
	handler EventHandler
	retry   *RetryStrategy
	config  Config
	log     zerolog.Logger
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewWorkerPool creates a WorkerPool. The handler defines event processing
// logic.
func NewWorkerPool(
	client StreamClient,
	dlq *DLQ,
	handler EventHandler,
	retry *RetryStrategy,
	cfg Config,
	log zerolog.Logger,
) *WorkerPool {
	return &WorkerPool{
		client:  client,
		dlq:     dlq,
		handler: handler,
		retry:   retry,
		config:  cfg,
		log:     log,
	}
}

// EnsureGroup creates the consumer group for the publish stream. If the
// stream or group already exists, the error is ignored.
func (wp *WorkerPool) EnsureGroup(ctx context.Context) error {
	err := wp.client.XGroupCreateMkStream(ctx, StreamKey, GroupName, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create consumer group %s on stream %s: %w", GroupName, StreamKey, err)
	}
	return nil
}

// Start launches the configured number of worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	ctx, wp.cancel = context.WithCancel(ctx)

	for i := range wp.config.WorkerCount {
		wp.wg.Add(1)
		go wp.runWorker(ctx, fmt.Sprintf("dispatcher-%d", i))
	}

	wp.log.Info().
		Int("worker_count", wp.config.WorkerCount).
		Msg("dispatch worker pool started")
}

// Stop signals all workers to stop and waits for them to finish processing,
// bounded by the configured shutdown timeout or ctx, whichever ends first.
func (wp *WorkerPool) Stop(ctx context.Context) {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info().Msg("dispatch worker pool stopped gracefully")
	case <-ctx.Done():
		wp.log.Warn().Msg("dispatch worker pool shutdown cut short by context")
	case <-time.After(wp.config.ShutdownTimeout):
		wp.log.Warn().Msg("dispatch worker pool shutdown timed out")
	}
}

// runWorker is the main loop for a single worker goroutine.
func (wp *WorkerPool) runWorker(ctx context.Context, consumerName string) {
	defer wp.wg.Done()

	wp.log.Info().Str("consumer", consumerName).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			wp.log.Info().Str("consumer", consumerName).Msg("worker stopping")
			return
		default:
		}

		xMsgs, err := wp.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    GroupName,
			Consumer: consumerName,
			Streams:  []string{StreamKey, ">"},
			Count:    1,
			Block:    wp.config.BlockTimeout,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			wp.log.Error().Err(err).Str("consumer", consumerName).Msg("xreadgroup error")
			continue
		}

		for _, stream := range xMsgs {
			for _, xMsg := range stream.Messages {
				wp.processEvent(ctx, xMsg)
			}
		}
	}
}

// processEvent handles a single stream entry: deserializes it, invokes the
// handler, and either acknowledges or retries/DLQs on failure.
func (wp *WorkerPool) processEvent(ctx context.Context, xMsg redis.XMessage) {
	data, ok := xMsg.Values["data"].(string)
	if !ok {
		wp.log.Error().Str("entry_id", xMsg.ID).Msg("invalid event data type")
		wp.ack(ctx, xMsg.ID)
		return
	}

	var evt PublishEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		wp.log.Error().Err(err).Str("entry_id", xMsg.ID).Msg("failed to unmarshal publish event")
		wp.ack(ctx, xMsg.ID)
		return
	}

	metrics.QueueDepth.Dec()

	processCtx, cancel := context.WithTimeout(ctx, wp.config.ProcessTimeout)
	defer cancel()

	err := wp.handler.HandleEvent(processCtx, &evt)
	if err != nil {
		wp.log.Error().
			Err(err).
			Str("event_id", evt.ID).
			Str("content_id", evt.ContentID).
			Int("retry_count", evt.RetryCount).
			Msg("publish event processing failed")

		evt.RetryCount++

		if wp.retry.ShouldRetry(evt.RetryCount) {
			backoff := wp.retry.NextBackoff(evt.RetryCount - 1)
			wp.log.Info().
				Str("event_id", evt.ID).
				Int("retry_count", evt.RetryCount).
				Dur("backoff", backoff).
				Msg("scheduling retry")

			// Re-enqueue after backoff by sleeping then re-adding.
			go wp.retryAfterBackoff(context.WithoutCancel(ctx), &evt, backoff)

			metrics.PublishEventsTotal.WithLabelValues("failed").Inc()
		} else {
			wp.log.Warn().
				Str("event_id", evt.ID).
				Int("retry_count", evt.RetryCount).
				Msg("max retries exhausted, moving to DLQ")

			if dlqErr := wp.dlq.Move(ctx, &evt, err.Error()); dlqErr != nil {
				wp.log.Error().Err(dlqErr).Str("event_id", evt.ID).Msg("failed to move to DLQ")
			}
		}
	} else {
		metrics.PublishEventsTotal.WithLabelValues("dispatched").Inc()
	}

	// Acknowledge regardless of outcome to prevent redelivery of the original.
	wp.ack(ctx, xMsg.ID)
}

func (wp *WorkerPool) ack(ctx context.Context, entryID string) {
	if err := wp.client.XAck(ctx, StreamKey, GroupName, entryID).Err(); err != nil {
		wp.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to acknowledge event")
	}
}

// retryAfterBackoff waits for the backoff duration then re-enqueues the event.
func (wp *WorkerPool) retryAfterBackoff(ctx context.Context, evt *PublishEvent, backoff time.Duration) {
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	producer := NewProducer(wp.client)
	if _, err := producer.Enqueue(ctx, evt); err != nil {
		wp.log.Error().Err(err).Str("event_id", evt.ID).Msg("failed to re-enqueue event for retry")
	}
}
