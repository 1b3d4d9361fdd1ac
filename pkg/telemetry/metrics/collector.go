package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
)

var (
	_ proxy.Recorder     = (*Collector)(nil)
	_ providers.Observer = (*Collector)(nil)
)

// Collector owns the relay registry and receives measurements from the
// engine and the provider clients.
//
// Every method is a no-op when metrics are disabled, so callers can wire a
// Collector unconditionally.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	engine    *EngineMetrics
	providers *ProviderMetrics
	breakers  *BreakerMetrics
}

// NewCollector creates a collector. A nil registry gets a fresh one.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "multimind"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "relay"
	}
	if len(cfg.LatencyBuckets) == 0 {
		// LLM calls range from sub-second to the 30s client timeout
		cfg.LatencyBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}

	c := &Collector{
		config:    cfg,
		registry:  registry,
		engine:    NewEngineMetrics(cfg, registry),
		providers: NewProviderMetrics(cfg, registry),
		breakers:  NewBreakerMetrics(cfg, registry),
	}

	// breakers start closed
	for _, p := range providers.AllProviders() {
		c.breakers.state.WithLabelValues(string(p)).Set(0)
	}
	return c
}

// QueueDepth implements proxy.Recorder.
func (c *Collector) QueueDepth(queued, inFlight int) {
	if !c.config.Enabled {
		return
	}
	c.engine.SetQueue(queued, inFlight)
}

// WindowUsage implements proxy.Recorder.
func (c *Collector) WindowUsage(current, limit int) {
	if !c.config.Enabled {
		return
	}
	c.engine.SetWindow(current, limit)
}

// RequestDispatched implements proxy.Recorder.
func (c *Collector) RequestDispatched(p providers.Provider) {
	if !c.config.Enabled {
		return
	}
	c.engine.RecordDispatch(string(p))
}

// RequestRetried implements proxy.Recorder.
func (c *Collector) RequestRetried(p providers.Provider) {
	if !c.config.Enabled {
		return
	}
	c.engine.RecordRetry(string(p))
}

// RequestFinished implements proxy.Recorder.
func (c *Collector) RequestFinished(p providers.Provider, outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engine.RecordFinished(string(p), outcome, d)
}

// BreakerState implements proxy.Recorder.
func (c *Collector) BreakerState(p providers.Provider, s breaker.State) {
	if !c.config.Enabled {
		return
	}
	c.breakers.RecordTransition(string(p), s)
}

// ObserveAttempt implements providers.Observer.
func (c *Collector) ObserveAttempt(p providers.Provider, outcome string, latency time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.providers.RecordAttempt(string(p), outcome, latency)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
