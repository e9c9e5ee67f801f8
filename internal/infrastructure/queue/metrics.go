package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the job queue runtime.
//
// All metrics are prefixed with "colleague_queue_" and labelled by queue.
type Metrics struct {
	Enqueued     *prometheus.CounterVec
	Deduplicated *prometheus.CounterVec
	Completed    *prometheus.CounterVec
	Failed       *prometheus.CounterVec
	Retried      *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
	Stalled      *prometheus.CounterVec
	Active       *prometheus.GaugeVec
	Duration     *prometheus.HistogramVec
}

// NewMetrics registers the queue metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "queue",
			Name:      name,
			Help:      help,
		}, []string{"queue"})
	}

	return &Metrics{
		Enqueued:     counter("jobs_enqueued_total", "Jobs accepted by Enqueue"),
		Deduplicated: counter("jobs_deduplicated_total", "Jobs skipped because their idempotency key was already used"),
		Completed:    counter("jobs_completed_total", "Jobs whose handler succeeded"),
		Failed:       counter("jobs_failed_total", "Jobs that failed terminally"),
		Retried:      counter("jobs_retried_total", "Failed attempts scheduled for retry"),
		DeadLettered: counter("jobs_dead_lettered_total", "Jobs moved to the dead-letter queue"),
		Stalled:      counter("jobs_stalled_total", "Active jobs recovered by the stall watchdog"),
		Active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "colleague",
			Subsystem: "queue",
			Name:      "jobs_active",
			Help:      "Jobs currently running in this process",
		}, []string{"queue"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "colleague",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Duration of a single job attempt",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"queue"}),
	}
}
