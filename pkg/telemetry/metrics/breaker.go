package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/config"
)

// BreakerMetrics tracks the per-provider circuit breakers.
//
// Metrics:
//   - multimind_relay_breaker_state: 0=closed, 1=half-open, 2=open
//   - multimind_relay_breaker_transitions_total: Transitions by target state
type BreakerMetrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewBreakerMetrics creates and registers breaker metrics with the provided registry.
func NewBreakerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BreakerMetrics {
	bm := &BreakerMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker transitions by target state",
			},
			[]string{"provider", "state"},
		),
	}

	registry.MustRegister(bm.state, bm.transitions)
	return bm
}

// RecordTransition sets the state gauge and counts the transition.
func (bm *BreakerMetrics) RecordTransition(provider string, to breaker.State) {
	bm.state.WithLabelValues(provider).Set(StateValue(to))
	bm.transitions.WithLabelValues(provider, string(to)).Inc()
}

// StateValue maps a breaker state to its gauge value.
func StateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateHalfOpen:
		return 1
	case breaker.StateOpen:
		return 2
	default:
		return 0
	}
}
