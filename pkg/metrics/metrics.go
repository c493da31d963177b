package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillfund_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillfund_db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skillfund_db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)

	// MQ 消费延迟（毫秒），outcome 为 ack / requeue / drop
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillfund_mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "outcome"},
	)

	// Outbox 发布结果
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillfund_outbox_published_total",
			Help: "Outbox events handed to the broker",
		},
		[]string{"routing_key", "result"}, // result: sent, retry, failed
	)

	// 业务事件计数
	DomainEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillfund_domain_events_total",
			Help: "Marketplace and crowdfunding actions",
		},
		[]string{"event"}, // job_posted, proposal_submitted, campaign_created, campaign_backed, message_sent, signup
	)

	ContributedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillfund_contributed_amount_usd_total",
			Help: "Sum of completed contributions in USD",
		},
	)

	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillfund_cache_results_total",
			Help: "Listing cache lookups",
		},
		[]string{"cache", "result"}, // result: hit, miss, error, skipped
	)
)

func RecordHTTPRequestDuration(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func IncrementSlowQuery(duration time.Duration) {
	SlowQueryCount.Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

func RecordMQConsumeLatency(routingKey, outcome string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, outcome).Observe(float64(duration.Milliseconds()))
}

func IncrementOutboxPublished(routingKey, result string) {
	OutboxPublished.WithLabelValues(routingKey, result).Inc()
}

func IncrementDomainEvent(event string) {
	DomainEvents.WithLabelValues(event).Inc()
}

// RecordContribution counts a backing and its amount.
func RecordContribution(amount float64) {
	DomainEvents.WithLabelValues("campaign_backed").Inc()
	ContributedAmount.Add(amount)
}

func IncrementCache(cache, result string) {
	CacheResults.WithLabelValues(cache, result).Inc()
}
