package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oaracle"

// Upstream outcomes recorded by the clients.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// Metrics holds the Prometheus collectors shared across the service.
type Metrics struct {
	ScoresComputed   *prometheus.CounterVec   // labels: category
	ScoresPersisted  *prometheus.CounterVec   // labels: outcome={success,error}
	FallbacksUsed    *prometheus.CounterVec   // labels: source={weather,forecast,geocode}
	UpstreamRequests *prometheus.CounterVec   // labels: upstream, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: upstream
	TrackedLocations prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScoresComputed,
		m.ScoresPersisted,
		m.FallbacksUsed,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.TrackedLocations,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScoresComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_computed_total",
			Help:      "Rowability scores computed, by category.",
		}, []string{"category"}),
		ScoresPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_persisted_total",
			Help:      "Rowability score persistence attempts, by outcome.",
		}, []string{"outcome"}),
		FallbacksUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_used_total",
			Help:      "Placeholder readings substituted for unavailable upstream data.",
		}, []string{"source"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to external providers, by upstream and outcome.",
		}, []string{"upstream", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "External provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream"}),
		TrackedLocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_locations",
			Help:      "Locations refreshed by the scheduler.",
		}),
	}
}
