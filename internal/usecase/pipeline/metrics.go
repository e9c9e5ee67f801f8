package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the meeting pipeline
type Metrics struct {
	Segments          *prometheus.CounterVec
	Processed         *prometheus.CounterVec
	RegulationChanges *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Segments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "pipeline",
			Name:      "segments_published_total",
			Help:      "Transcript segments published, by source",
		}, []string{"source"}),
		Processed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "pipeline",
			Name:      "meetings_processed_total",
			Help:      "Meeting-processing attempts, by outcome",
		}, []string{"outcome"}),
		RegulationChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colleague",
			Subsystem: "regwatch",
			Name:      "changes_total",
			Help:      "Regulation changes received, by source",
		}, []string{"source"}),
	}
}
