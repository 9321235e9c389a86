package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks background task processing. A nil *Metrics is a no-op so
// tests can run pipelines without a registry.
type Metrics struct {
	processed  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inProgress *prometheus.GaugeVec
}

// NewMetrics registers task metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rita_tasks_processed_total",
				Help: "Background tasks driven to a terminal state, by type and outcome.",
			},
			[]string{"type", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rita_task_duration_seconds",
				Help:    "Wall-clock duration of background task processing.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		inProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rita_tasks_in_progress",
				Help: "Background tasks currently being processed.",
			},
			[]string{"type"},
		),
	}
	reg.MustRegister(m.processed, m.duration, m.inProgress)
	return m
}

func (m *Metrics) started(kind Kind) {
	if m == nil {
		return
	}
	m.inProgress.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) finished(kind Kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inProgress.WithLabelValues(string(kind)).Dec()
	m.processed.WithLabelValues(string(kind), outcome).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
