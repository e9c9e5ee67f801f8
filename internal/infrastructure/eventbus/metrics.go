package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event bus
type Metrics struct {
	Published     *prometheus.CounterVec
	HandlerErrors *prometheus.CounterVec
	LogErrors     prometheus.Counter
	MirrorErrors  prometheus.Counter
	Replayed      prometheus.Counter
}

// NewMetrics registers the bus metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published, by type",
		}, []string{"type"}),
		HandlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "bus",
			Name:      "handler_errors_total",
			Help:      "Handler failures that aborted a publish, by type",
		}, []string{"type"}),
		LogErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "bus",
			Name:      "replay_log_errors_total",
			Help:      "Failed appends to the replay log",
		}),
		MirrorErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "bus",
			Name:      "mirror_errors_total",
			Help:      "Failed mirror publishes",
		}),
		Replayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "bus",
			Name:      "events_replayed_total",
			Help:      "Events re-delivered by Replay",
		}),
	}
}
