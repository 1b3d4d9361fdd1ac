package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"multimind-hq/relay/pkg/config"
)

// ProviderMetrics tracks HTTP attempts against the LLM providers.
//
// Metrics:
//   - multimind_relay_provider_attempts_total: Attempts by provider and outcome
//   - multimind_relay_provider_latency_seconds: Attempt latency
//   - multimind_relay_provider_errors_total: Failed attempts by error kind
type ProviderMetrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_attempts_total",
				Help:      "HTTP attempts made to each provider by outcome",
			},
			[]string{"provider", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Provider HTTP attempt latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"provider"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Failed provider attempts by error kind",
			},
			[]string{"provider", "error_type"},
		),
	}

	registry.MustRegister(
		pm.attempts,
		pm.latency,
		pm.errors,
	)

	return pm
}

// RecordAttempt records one HTTP attempt. Any outcome other than "success"
// also counts as an error of that type.
func (pm *ProviderMetrics) RecordAttempt(provider, outcome string, latency time.Duration) {
	pm.attempts.WithLabelValues(provider, outcome).Inc()
	pm.latency.WithLabelValues(provider).Observe(latency.Seconds())
	if outcome != "success" {
		pm.errors.WithLabelValues(provider, outcome).Inc()
	}
}
