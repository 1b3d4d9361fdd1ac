// Package tracing provides OpenTelemetry distributed tracing for the relay.
//
// New installs an SDK tracer provider exporting over OTLP gRPC and the W3C
// Trace Context propagator. The engine and the provider clients open their
// spans through otel.Tracer, so once New has run a chat request produces one
// trace:
//
//	POST /v1/chat                (HTTPMiddleware, server span)
//	└── proxy.handle_request     (engine)
//	    └── provider.send_message (provider client, one per execution)
//
// Requests arriving over NATS carry their trace context in message headers;
// Extract and Inject accept both http.Header and nats.Header.
//
// # Sampling
//
//   - always: Sample all traces
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace ID (default 0.1)
//
// All samplers honour the parent's decision.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    insecure: true
package tracing
