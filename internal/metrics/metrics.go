package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the signal bus and monitor
type Registry struct {
	// Bus metrics
	SignalsPublished *prometheus.CounterVec
	SignalsFetched   *prometheus.CounterVec
	Acknowledgments  prometheus.Counter
	Resolutions      prometheus.Counter
	SweepDeleted     prometheus.Counter

	// Health monitor metrics
	ProbeDuration    *prometheus.HistogramVec
	ProbeFailures    *prometheus.CounterVec
	CapabilityState  *prometheus.GaugeVec
	StateTransitions *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with all synapse metrics registered
// against the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		SignalsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_signals_published_total",
				Help: "Total signals published by severity and domain",
			},
			[]string{"severity", "domain"},
		),

		SignalsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_signals_fetched_total",
				Help: "Total signals delivered by response class",
			},
			[]string{"class"},
		),

		Acknowledgments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_acknowledgments_total",
				Help: "Total acknowledge calls",
			},
		),

		Resolutions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_resolutions_total",
				Help: "Total resolve calls",
			},
		),

		SweepDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_sweep_deleted_total",
				Help: "Total resolved signals removed by retention sweeps",
			},
		),

		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_probe_duration_seconds",
				Help:    "Duration of capability probe invocations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"capability", "result"},
		),

		ProbeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_probe_failures_total",
				Help: "Total probe failures by capability",
			},
			[]string{"capability"},
		),

		CapabilityState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "synapse_capability_state",
				Help: "Capability state (0=healthy, 1=degraded, 2=failed)",
			},
			[]string{"capability"},
		),

		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_state_transitions_total",
				Help: "Capability state machine transitions",
			},
			[]string{"capability", "to"},
		),
	}

	reg.MustRegister(
		r.SignalsPublished,
		r.SignalsFetched,
		r.Acknowledgments,
		r.Resolutions,
		r.SweepDeleted,
		r.ProbeDuration,
		r.ProbeFailures,
		r.CapabilityState,
		r.StateTransitions,
	)

	return r
}

// NewNopRegistry creates a registry backed by a throwaway registerer, for
// tests and callers that do not export metrics.
func NewNopRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
