package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger records order ids in a Redis set and appends purchase events to
// a capped stream for downstream consumers.
type RedisLedger struct {
	client RedisPipelineClient
	setKey string
	stream string
	maxLen int64
}

// RedisPipelineClient is the minimal client surface used by RedisLedger.
type RedisPipelineClient interface {
	Pipeline() RedisPipeliner
}

// RedisPipeliner is the subset of commands used within a pipeline.
type RedisPipeliner interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// NewRedisLedger constructs a Redis-backed ledger.
func NewRedisLedger(client RedisPipelineClient, stream string, maxLen int64) *RedisLedger {
	if stream == "" {
		stream = "purchase_events"
	}
	return &RedisLedger{
		client: client,
		setKey: "orders:completed",
		stream: stream,
		maxLen: maxLen,
	}
}

// Append records the order id and publishes a purchase event. SAdd makes the
// set write idempotent; the stream may carry duplicates if a prior Exec
// failed midway, which consumers must tolerate.
func (r *RedisLedger) Append(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if orderID == "" {
		return ErrEmptyOrderID
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, r.setKey, orderID)

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"order_id":     orderID,
			"completed_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	pipe.XAdd(ctx, args)

	_, err := pipe.Exec(ctx)
	return err
}
