package config

import "time"

// Config is the root configuration structure for the MultiMind relay.
// It contains the request engine constants, the provider credentials and
// every outer surface (HTTP server, NATS bridge, chat history, telemetry).
type Config struct {
	// Server contains the HTTP status and chat API configuration.
	Server ServerConfig `yaml:"server"`

	// Proxy contains the request engine constants: queue size, rate window,
	// retry policy and timers.
	Proxy ProxyConfig `yaml:"proxy"`

	// Breaker contains the per-provider circuit breaker thresholds.
	Breaker BreakerConfig `yaml:"breaker"`

	// Client contains the shared provider HTTP client settings.
	Client ClientConfig `yaml:"client"`

	// Providers contains per-provider credentials and gateway overrides.
	// Keys are provider names (e.g., "openai", "cloudflare").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Credentials configures the credential sources layered over Providers.
	Credentials CredentialsConfig `yaml:"credentials"`

	// History configures the SQLite chat history store.
	History HistoryConfig `yaml:"history"`

	// NATS configures the NATS request/reply bridge.
	NATS NATSConfig `yaml:"nats"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8787").
	// Default: "127.0.0.1:8787"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must cover the engine queue timeout plus the provider call.
	// Default: 90s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the chat request body.
	// Default: 262144 (256KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are added to responses.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is the list of allowed origins; "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is the list of allowed request headers.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// ProxyConfig contains the request engine constants.
type ProxyConfig struct {
	// MaxQueueSize is the queue capacity. Requests beyond it are rejected.
	// Default: 100
	MaxQueueSize int `yaml:"max_queue_size"`

	// RateLimit is the number of dispatches allowed per RateWindow.
	// Default: 50
	RateLimit int `yaml:"rate_limit"`

	// RateWindow is the sliding rate window.
	// Default: 60s
	RateWindow time.Duration `yaml:"rate_window"`

	// RequestTimeout bounds the time a request may wait in the queue.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries is the number of re-queues after the first execution.
	// Negative disables retries.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base of the linear retry hold.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DrainInterval is the pause between dispatches. Negative disables it.
	// Default: 100ms
	DrainInterval time.Duration `yaml:"drain_interval"`

	// MaxInFlight bounds concurrently executing requests. Zero leaves them
	// bounded by the rate window only.
	// Default: 0
	MaxInFlight int `yaml:"max_in_flight"`

	// HealthInterval is the health monitor period.
	// Default: 5s
	HealthInterval time.Duration `yaml:"health_interval"`

	// CleanupInterval is the rate window pruning period.
	// Default: 10s
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// StopTimeout bounds the wait for in-flight requests on stop.
	// Default: 5s
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// CapacityWarning is the queue fill ratio that triggers a warning.
	// Default: 0.8
	CapacityWarning float64 `yaml:"capacity_warning"`

	// AutoStart starts the engine when the server starts.
	// Default: true
	AutoStart bool `yaml:"auto_start"`
}

// BreakerConfig contains circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// breaker.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long a breaker stays open before probing.
	// Default: 60s
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMaxCalls is the trial call budget while half-open.
	// Default: 3
	HalfOpenMaxCalls int `yaml:"half_open_max_calls"`

	// MonitorInterval is the period of the stale-failure sweep.
	// Default: 30s
	MonitorInterval time.Duration `yaml:"monitor_interval"`

	// CallTimeout bounds one guarded call.
	// Default: 30s
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// ClientConfig contains the shared provider HTTP client settings.
type ClientConfig struct {
	// Timeout bounds one HTTP attempt.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the number of HTTP attempts per send, the first included.
	// Negative means a single attempt.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the base of the exponential backoff.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxIdleConns is the pool size across hosts.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the pool size per provider host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout closes idle pooled connections.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig contains configuration for a single provider.
type ProviderConfig struct {
	// APIKey is the provider credential. Prefer the credentials file or
	// environment variables over storing keys here.
	APIKey string `yaml:"api_key"`

	// GatewayURL replaces the provider's default base URL.
	GatewayURL string `yaml:"gateway_url"`
}

// CredentialsConfig configures the credential sources.
type CredentialsConfig struct {
	// File is a YAML credentials file. Empty disables it.
	File string `yaml:"file"`

	// Watch reloads File when it changes.
	// Default: true
	Watch bool `yaml:"watch"`

	// EnvPrefix is the prefix of credential environment variables.
	// Default: "MULTIMIND"
	EnvPrefix string `yaml:"env_prefix"`
}

// HistoryConfig configures the chat history store.
type HistoryConfig struct {
	// Enabled turns the chat history on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// RetentionDays deletes chats not updated for this many days. Zero keeps
	// everything.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron schedule of the retention job.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// NATSConfig configures the NATS bridge.
type NATSConfig struct {
	// Enabled starts the bridge with the server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// URL is the NATS server URL.
	// Default: "nats://127.0.0.1:4222"
	URL string `yaml:"url"`

	// Subject is the chat request subject.
	// Default: "multimind.chat"
	Subject string `yaml:"subject"`

	// QueueGroup load-balances requests across relay instances.
	// Default: "relay"
	QueueGroup string `yaml:"queue_group"`

	// MaxReconnects is the reconnect budget; -1 retries forever.
	// Default: -1
	MaxReconnects int `yaml:"max_reconnects"`

	// ReconnectWait is the pause between reconnect attempts.
	// Default: 2s
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks provider credentials in log output.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "multimind"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "relay"
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets defines histogram buckets for latencies (seconds).
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "multimind-relay"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
