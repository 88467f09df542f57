package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	dispatched  *prometheus.CounterVec
	finished    *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	discarded   prometheus.Counter
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
}

// newMetrics registers collectors on reg. A nil reg creates unregistered
// collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "dispatched_total",
			Help:      "Transform operations dispatched, by kind.",
		}, []string{"kind"}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "finished_total",
			Help:      "Transform operations reaching a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "resolutions_total",
			Help:      "Successful results by resolution (applied, stale, stale-accepted, stale-discarded).",
		}, []string{"resolution"}),
		discarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "late_results_discarded_total",
			Help:      "Results that arrived after their operation was cancelled.",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "duration_seconds",
			Help:      "Time from dispatch until the transform returned.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "diffcommit",
			Subsystem: "operation",
			Name:      "active",
			Help:      "Operations currently pending.",
		}),
	}
}
