package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mbellec/diocese-newsletter/internal/metrics"
)

// DLQEvent wraps a failed publish event with failure metadata.
type DLQEvent struct {
	OriginalEvent *PublishEvent `json:"original_event"`
	FailureReason string        `json:"failure_reason"`
	MovedAt       time.Time     `json:"moved_at"`
}

// DLQ manages dead-lettered publish events.
type DLQ struct {
	client   StreamClient
	producer *Producer
}

// NewDLQ creates a new DLQ backed by the given Redis client and producer.
func NewDLQ(client StreamClient, producer *Producer) *DLQ {
	return &DLQ{client: client, producer: producer}
}

// Move parks a failed publish event on the DLQ stream.
func (d *DLQ) Move(ctx context.Context, evt *PublishEvent, reason string) error {
	dlqEvt := DLQEvent{
		OriginalEvent: evt,
		FailureReason: reason,
		MovedAt:       time.Now().UTC(),
	}

	data, err := json.Marshal(dlqEvt)
	if err != nil {
		return fmt.Errorf("marshal dlq event: %w", err)
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DLQStreamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", DLQStreamKey, err)
	}

	metrics.PublishEventsTotal.WithLabelValues("dlq").Inc()

	return nil
}

// Reprocess removes events from the DLQ, resets their retry count, and
// re-enqueues them to the primary stream. It returns the number of events
// successfully reprocessed.
func (d *DLQ) Reprocess(ctx context.Context, entryIDs []string) (int, error) {
	reprocessed := 0

	for _, entryID := range entryIDs {
		msgs, err := d.client.XRange(ctx, DLQStreamKey, entryID, entryID).Result()
		if err != nil {
			return reprocessed, fmt.Errorf("xrange dlq event %s: %w", entryID, err)
		}
		if len(msgs) == 0 {
			continue
		}

		data, ok := msgs[0].Values["data"].(string)
		if !ok {
			continue
		}

		var dlqEvt DLQEvent
		if err := json.Unmarshal([]byte(data), &dlqEvt); err != nil {
			continue
		}

		dlqEvt.OriginalEvent.RetryCount = 0
		if _, err := d.producer.Enqueue(ctx, dlqEvt.OriginalEvent); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue event %s: %w", dlqEvt.OriginalEvent.ID, err)
		}

		if err := d.client.XDel(ctx, DLQStreamKey, entryID).Err(); err != nil {
			return reprocessed, fmt.Errorf("xdel dlq event %s: %w", entryID, err)
		}

		reprocessed++
	}

	return reprocessed, nil
}
