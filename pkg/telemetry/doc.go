// Package telemetry groups the relay's observability packages.
//
// # Components
//
//   - logging: slog setup with credential redaction and request context
//   - metrics: Prometheus collectors for the engine, provider clients and
//     circuit breakers
//   - tracing: OpenTelemetry spans exported over OTLP/gRPC, with W3C trace
//     context carried across HTTP and NATS hops
//   - health: liveness, readiness and version endpoints
//
// # Wiring
//
// The run command builds each piece from config.TelemetryConfig:
//
//	logger, _ := logging.New(logging.Config{Level: cfg.Level, Format: cfg.Format})
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	tracer, _ := tracing.New(&cfg.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	factory := providerfactory.New(creds, clientCfg, providers.WithObserver(collector))
//	engine := proxy.New(engineCfg, factory, proxy.WithRecorder(collector))
//
// # Credential Protection
//
// With redact_secrets on (the default) provider keys never reach the log
// output: Authorization and x-api-key values, bearer tokens and sk- style
// keys are masked wherever they appear in a record.
package telemetry
