package adapter

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for the fetch pipeline. A nil
// *Metrics is a valid no-op receiver so tests and one-off runs can skip
// instrumentation.
type Metrics struct {
	Registry               *prometheus.Registry
	FetchesTotal           *prometheus.CounterVec
	AggregatorRetriesTotal *prometheus.CounterVec
	SessionRotationsTotal  prometheus.Counter
}

// NewMetrics constructs and registers all collectors on a dedicated
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_fetches_total",
			Help: "Fetch attempts by site and outcome (diagnostic kind).",
		},
		[]string{"site", "outcome"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_aggregator_retries_total",
			Help: "Aggregator retry sleeps by reason.",
		},
		[]string{"reason"},
	)
	rotations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricescout_session_rotations_total",
			Help: "Forced browser session rotations.",
		},
	)

	registry.MustRegister(fetches, retries, rotations)

	return &Metrics{
		Registry:               registry,
		FetchesTotal:           fetches,
		AggregatorRetriesTotal: retries,
		SessionRotationsTotal:  rotations,
	}
}

// ObserveFetch records one fetch outcome.
func (m *Metrics) ObserveFetch(site, outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(site, outcome).Inc()
}

// IncAggregatorRetry records one aggregator retry sleep.
func (m *Metrics) IncAggregatorRetry(reason string) {
	if m == nil {
		return
	}
	m.AggregatorRetriesTotal.WithLabelValues(reason).Inc()
}

// IncSessionRotation records one forced session rotation.
func (m *Metrics) IncSessionRotation() {
	if m == nil {
		return
	}
	m.SessionRotationsTotal.Inc()
}
