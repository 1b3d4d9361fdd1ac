package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"multimind-hq/relay/pkg/config"
)

// EngineMetrics tracks the request engine.
//
// Metrics:
//   - multimind_relay_requests_total: Finished requests by provider and outcome
//   - multimind_relay_request_duration_seconds: Time from enqueue to outcome
//   - multimind_relay_dispatches_total: Executions, retries included
//   - multimind_relay_retries_total: Re-queued requests
//   - multimind_relay_queue_depth: Requests waiting in the queue
//   - multimind_relay_in_flight: Requests executing
//   - multimind_relay_rate_window_used / _limit: Rate window fill
type EngineMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	dispatchesTotal *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec

	queueDepth  prometheus.Gauge
	inFlight    prometheus.Gauge
	windowUsed  prometheus.Gauge
	windowLimit prometheus.Gauge
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Requests handled by the engine by final outcome",
			},
			[]string{"provider", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time from enqueue to outcome in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"provider"},
		),

		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dispatches_total",
				Help:      "Request executions started, retries included",
			},
			[]string{"provider"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries_total",
				Help:      "Failed requests re-queued for another attempt",
			},
			[]string{"provider"},
		),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_depth",
			Help:      "Requests waiting in the queue",
		}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "in_flight",
			Help:      "Requests currently executing",
		}),

		windowUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rate_window_used",
			Help:      "Dispatches recorded in the current rate window",
		}),

		windowLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rate_window_limit",
			Help:      "Dispatches allowed per rate window",
		}),
	}

	registry.MustRegister(
		em.requestsTotal,
		em.requestDuration,
		em.dispatchesTotal,
		em.retriesTotal,
		em.queueDepth,
		em.inFlight,
		em.windowUsed,
		em.windowLimit,
	)

	return em
}

// RecordFinished records the outcome and latency of one request.
func (em *EngineMetrics) RecordFinished(provider, outcome string, d time.Duration) {
	em.requestsTotal.WithLabelValues(provider, outcome).Inc()
	em.requestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordDispatch counts one execution.
func (em *EngineMetrics) RecordDispatch(provider string) {
	em.dispatchesTotal.WithLabelValues(provider).Inc()
}

// RecordRetry counts one re-queue.
func (em *EngineMetrics) RecordRetry(provider string) {
	em.retriesTotal.WithLabelValues(provider).Inc()
}

// SetQueue updates the queue gauges.
func (em *EngineMetrics) SetQueue(queued, inFlight int) {
	em.queueDepth.Set(float64(queued))
	em.inFlight.Set(float64(inFlight))
}

// SetWindow updates the rate window gauges.
func (em *EngineMetrics) SetWindow(used, limit int) {
	em.windowUsed.Set(float64(used))
	em.windowLimit.Set(float64(limit))
}
