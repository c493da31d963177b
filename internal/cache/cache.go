package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"skillfund/pkg/circuitbreaker"
	"skillfund/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Namespaces of cached listings. Each namespace is one Redis hash so a write
// can drop every cached variant with a single DEL, plus a generation counter
// bumped on every invalidation.
const (
	NamespaceOpenJobs        = "jobs:open"
	NamespaceActiveCampaigns = "campaigns:active"
)

// ListingCache caches listing query results in Redis. Redis failures never
// reach the caller: they count as misses, and repeated failures open the
// breaker so requests stop waiting on a dead Redis.
type ListingCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewListingCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ListingCache {
	c := &ListingCache{rdb: rdb, ttl: ttl, logger: logger}
	c.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             10 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("Listing cache breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

func hashKey(namespace string) string {
	return "cache:" + namespace
}

func genKey(namespace string) string {
	return "cache:" + namespace + ":gen"
}

// Generation identifies the namespace contents a reader saw on a miss. Set
// with an older generation is dropped, so a read that raced an invalidation
// cannot put rows from before the write back into the cache.
type Generation int64

// setIfCurrent: KEYS[1]=gen KEYS[2]=hash ARGV=gen, variant, data, ttl ms
var setIfCurrent = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[4])
return 1
`)

// Get decodes the cached variant into dst and reports whether it was found.
// On a miss the returned generation is what Set expects.
func (c *ListingCache) Get(ctx context.Context, namespace, variant string, dst any) (Generation, bool) {
	var (
		raw string
		gen int64
	)
	err := c.breaker.Execute(func() error {
		pipe := c.rdb.Pipeline()
		genCmd := pipe.Get(ctx, genKey(namespace))
		rawCmd := pipe.HGet(ctx, hashKey(namespace), variant)
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var err error
		if gen, err = genCmd.Int64(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		raw = rawCmd.Val()
		return nil
	})
	if err != nil {
		metrics.IncrementCache(namespace, "error")
		c.logger.Debug("Cache get failed", zap.String("namespace", namespace), zap.Error(err))
		return 0, false
	}
	if raw == "" {
		metrics.IncrementCache(namespace, "miss")
		return Generation(gen), false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		metrics.IncrementCache(namespace, "error")
		c.logger.Warn("Cache entry corrupt", zap.String("namespace", namespace), zap.Error(err))
		return Generation(gen), false
	}
	metrics.IncrementCache(namespace, "hit")
	return Generation(gen), true
}

// Set stores v under the variant unless the namespace was invalidated after
// gen was read. The whole namespace shares one TTL.
func (c *ListingCache) Set(ctx context.Context, namespace, variant string, gen Generation, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Cache encode failed", zap.String("namespace", namespace), zap.Error(err))
		return
	}
	var stored int64
	err = c.breaker.Execute(func() error {
		var err error
		stored, err = setIfCurrent.Run(ctx, c.rdb,
			[]string{genKey(namespace), hashKey(namespace)},
			int64(gen), variant, data, c.ttl.Milliseconds(),
		).Int64()
		return err
	})
	if err != nil {
		c.logger.Debug("Cache set failed", zap.String("namespace", namespace), zap.Error(err))
		return
	}
	if stored == 0 {
		c.logger.Debug("Cache set skipped, namespace invalidated", zap.String("namespace", namespace))
	}
}

// Invalidate 清空整个命名空间并推进 generation
func (c *ListingCache) Invalidate(ctx context.Context, namespace string) {
	err := c.breaker.Execute(func() error {
		pipe := c.rdb.TxPipeline()
		pipe.Incr(ctx, genKey(namespace))
		pipe.Del(ctx, hashKey(namespace))
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		c.logger.Warn("Cache invalidate failed", zap.String("namespace", namespace), zap.Error(err))
	}
}

// Noop never hits. Used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string, string, any) (Generation, bool) { return 0, false }
func (Noop) Set(context.Context, string, string, Generation, any)        {}
func (Noop) Invalidate(context.Context, string)                          {}
