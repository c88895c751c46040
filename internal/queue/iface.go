package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the slice of the Redis API the queue uses. *redis.Client
// satisfies it; tests substitute an in-memory fake.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XRange(ctx context.Context, stream, start, stop string) *redis.XMessageSliceCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
}

// Enqueuer publishes events to the queue. Producer implements it; handlers
// that only need to enqueue depend on this instead of the full Producer.
type Enqueuer interface {
	Enqueue(ctx context.Context, evt *PublishEvent) (string, error)
}
