// Package metrics defines the Prometheus collectors exported by the portal.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForwardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fellowship_forward_outcomes_total",
			Help: "Submissions relayed upstream, by outcome",
		},
		[]string{"outcome"},
	)

	ForwardLateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fellowship_forward_late_outcomes_total",
			Help: "Upstream results that arrived after an optimistic success was reported",
		},
		[]string{"outcome"},
	)

	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fellowship_forward_duration_seconds",
			Help:    "Time until the forwarder answered the applicant",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"outcome"},
	)

	MirrorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fellowship_table_mirror_failures_total",
			Help: "Failed writes to the table service mirror",
		},
	)

	FormsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fellowship_forms_started_total",
			Help: "Sessions in which the applicant edited the first field",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fellowship_sessions_active",
			Help: "Form sessions currently held in memory",
		},
	)

	CurrentPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fellowship_phase",
			Help: "1 for the current application phase, 0 otherwise",
		},
		[]string{"phase"},
	)
)

// SetPhase marks one phase as current.
func SetPhase(current string, all ...string) {
	for _, p := range all {
		v := 0.0
		if p == current {
			v = 1
		}
		CurrentPhase.WithLabelValues(p).Set(v)
	}
}
