package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// records handled by the ttl updater, by outcome
	// labels: result (updated/skipped/noop/dead_lettered)
	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockttl_records_processed_total",
			Help: "total number of change events processed",
		},
		[]string{"result"},
	)

	// handler errors - one increment per failed handling attempt
	// this is the series the alarm evaluator samples
	HandlerErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lockttl_handler_errors_total",
			Help: "total number of handler errors",
		},
	)

	// conditional writes issued against the record store
	// labels: outcome (applied/lost) - lost means another writer already
	// advanced the expiration further, which is a benign no-op
	ConditionalWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockttl_conditional_writes_total",
			Help: "total number of conditional expiration writes",
		},
		[]string{"outcome"},
	)

	// dead-letter enqueues, by destination
	// labels: destination (queue/spool/dropped)
	// dropped > 0 means the catastrophic-loss path fired, page on it
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockttl_dead_letters_total",
			Help: "total number of events routed to the failure sink",
		},
		[]string{"destination"},
	)

	// stream poll latency - histogram to track p50/p90/p99
	// labels: shard_id (to spot slow shards)
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lockttl_poll_duration_seconds",
			Help:    "time taken to read and resolve one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"shard_id"},
	)

	// alarm state - 1 while in ALARM, 0 while OK
	AlarmState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockttl_alarm_state",
			Help: "error alarm state (1 = ALARM, 0 = OK)",
		},
	)

	// shard workers currently running
	// bounded by the configured concurrency ceiling
	ShardWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockttl_shard_workers_active",
			Help: "current number of running shard workers",
		},
	)

	// service uptime - always 1 when running
	// prometheus uses this to detect service restarts
	Up = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lockttl_up",
			Help: "whether the service is up (always 1 when running)",
		},
	)
)

func init() {
	// set uptime gauge to 1 on startup
	Up.Set(1)
}
