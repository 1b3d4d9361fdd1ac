package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:        true,
		Namespace:      "test",
		Subsystem:      "metrics",
		LatencyBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if collector.Registry() == nil {
		t.Fatal("expected a fresh registry")
	}
	if cfg.Namespace != "multimind" || cfg.Subsystem != "relay" {
		t.Errorf("unexpected defaults %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.LatencyBuckets) == 0 {
		t.Error("expected default buckets")
	}
}

func TestCollector_RequestLifecycle(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.RequestDispatched(providers.OpenAI)
	collector.RequestRetried(providers.OpenAI)
	collector.RequestDispatched(providers.OpenAI)
	collector.RequestFinished(providers.OpenAI, "success", 1200*time.Millisecond)
	collector.RequestFinished(providers.Anthropic, "auth", 10*time.Millisecond)

	em := collector.engine
	if got := testutil.ToFloat64(em.dispatchesTotal.WithLabelValues("openai")); got != 2 {
		t.Errorf("dispatches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(em.retriesTotal.WithLabelValues("openai")); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(em.requestsTotal.WithLabelValues("openai", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(em.requestsTotal.WithLabelValues("anthropic", "auth")); got != 1 {
		t.Errorf("auth count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(em.requestDuration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestCollector_Gauges(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.QueueDepth(7, 3)
	collector.WindowUsage(42, 50)

	em := collector.engine
	if got := testutil.ToFloat64(em.queueDepth); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(em.inFlight); got != 3 {
		t.Errorf("in flight = %v, want 3", got)
	}
	if got := testutil.ToFloat64(em.windowUsed); got != 42 {
		t.Errorf("window used = %v, want 42", got)
	}
	if got := testutil.ToFloat64(em.windowLimit); got != 50 {
		t.Errorf("window limit = %v, want 50", got)
	}
}

func TestCollector_ObserveAttempt(t *testing.T) {
	collector := NewCollector(testConfig(), nil)

	collector.ObserveAttempt(providers.Google, "success", 300*time.Millisecond)
	collector.ObserveAttempt(providers.Google, "server", 2*time.Second)
	collector.ObserveAttempt(providers.Google, "network_error", time.Second)

	pm := collector.providers
	if got := testutil.ToFloat64(pm.attempts.WithLabelValues("google", "success")); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.errors.WithLabelValues("google", "server")); got != 1 {
		t.Errorf("server errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(pm.errors); got != 2 {
		t.Errorf("success must not count as an error: %d series", got)
	}
}

func TestCollector_BreakerState(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	bm := collector.breakers

	if got := testutil.CollectAndCount(bm.state); got != len(providers.AllProviders()) {
		t.Errorf("expected a state series per provider, got %d", got)
	}

	collector.BreakerState(providers.OpenRouter, breaker.StateOpen)
	if got := testutil.ToFloat64(bm.state.WithLabelValues("openrouter")); got != 2 {
		t.Errorf("state = %v, want 2 (open)", got)
	}

	collector.BreakerState(providers.OpenRouter, breaker.StateHalfOpen)
	collector.BreakerState(providers.OpenRouter, breaker.StateClosed)
	if got := testutil.ToFloat64(bm.state.WithLabelValues("openrouter")); got != 0 {
		t.Errorf("state = %v, want 0 (closed)", got)
	}
	if got := testutil.ToFloat64(bm.transitions.WithLabelValues("openrouter", "OPEN")); got != 1 {
		t.Errorf("open transitions = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, nil)

	collector.RequestDispatched(providers.OpenAI)
	collector.QueueDepth(5, 1)
	collector.ObserveAttempt(providers.OpenAI, "success", time.Second)

	if got := testutil.CollectAndCount(collector.engine.dispatchesTotal); got != 0 {
		t.Errorf("disabled collector recorded %d dispatch series", got)
	}
	if got := testutil.ToFloat64(collector.engine.queueDepth); got != 0 {
		t.Errorf("disabled collector set queue depth to %v", got)
	}
}

func TestStateValue(t *testing.T) {
	tests := map[breaker.State]float64{
		breaker.StateClosed:   0,
		breaker.StateHalfOpen: 1,
		breaker.StateOpen:     2,
	}
	for state, want := range tests {
		if got := StateValue(state); got != want {
			t.Errorf("StateValue(%s) = %v, want %v", state, got, want)
		}
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RequestFinished(providers.Cloudflare, "success", time.Second)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `test_metrics_requests_total{outcome="success",provider="cloudflare"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
	if !strings.Contains(string(body), "test_metrics_breaker_state") {
		t.Error("metrics output missing breaker state")
	}
}

func BenchmarkCollector_RequestFinished(b *testing.B) {
	collector := NewCollector(testConfig(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.RequestFinished(providers.OpenAI, "success", time.Second)
	}
}
