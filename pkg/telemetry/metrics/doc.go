// Package metrics exposes the relay's Prometheus metrics.
//
// # Overview
//
// The Collector implements proxy.Recorder and providers.Observer, so the
// engine and every provider client report into one registry:
//
//   - Engine: queue depth, in-flight requests, rate window usage,
//     dispatches, retries, outcomes and end-to-end latency
//   - Providers: HTTP attempts by outcome and attempt latency
//   - Breakers: current state and transitions
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	engine := proxy.New(cfg.Proxy.EngineConfig(), factory, proxy.WithRecorder(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// # Prometheus Endpoint
//
//	# HELP multimind_relay_requests_total Requests handled by the engine by final outcome
//	# TYPE multimind_relay_requests_total counter
//	multimind_relay_requests_total{outcome="success",provider="openai"} 12
//
// All labels are bounded: provider names, error kinds and breaker states.
package metrics
