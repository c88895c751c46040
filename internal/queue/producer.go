package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mbellec/diocese-newsletter/internal/metrics"
)

// Producer enqueues publish events into the Redis stream.
type Producer struct {
	client StreamClient
}

// NewProducer creates a new Producer backed by the given Redis client.
func NewProducer(client StreamClient) *Producer {
	return &Producer{client: client}
}

// Enqueue adds a publish event to the stream using XADD and returns the
// Redis stream entry ID.
func (p *Producer) Enqueue(ctx context.Context, evt *PublishEvent) (string, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal publish event: %w", err)
	}

	entryID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream %s: %w", StreamKey, err)
	}

	metrics.QueueDepth.Inc()

	return entryID, nil
}
