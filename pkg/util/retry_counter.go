package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter 按 routing key + event id 记录消费失败次数，超过 limit 视为耗尽
type RetryCounter struct {
	rdb   *redis.Client
	ttl   time.Duration
	limit int64
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration, limit int) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl, limit: int64(limit)}
}

func retryKey(routingKey, eventID string) string {
	return "retry:" + routingKey + ":" + eventID
}

// Attempt records one failed delivery and reports whether the retry budget
// is spent. Every attempt pushes the expiry forward by ttl.
func (r *RetryCounter) Attempt(ctx context.Context, routingKey, eventID string) (int64, bool, error) {
	key := retryKey(routingKey, eventID)

	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	count := incr.Val()
	return count, count > r.limit, nil
}

// Reset forgets the failures of an event.
func (r *RetryCounter) Reset(ctx context.Context, routingKey, eventID string) error {
	return r.rdb.Del(ctx, retryKey(routingKey, eventID)).Err()
}
