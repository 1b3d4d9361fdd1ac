package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8787"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = 262144  // 256KB
	DefaultCORSMaxAge      = 3600    // 1 hour

	// Engine defaults
	DefaultMaxQueueSize    = 100
	DefaultRateLimit       = 50
	DefaultRateWindow      = 60 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultDrainInterval   = 100 * time.Millisecond
	DefaultHealthInterval  = 5 * time.Second
	DefaultCleanupInterval = 10 * time.Second
	DefaultStopTimeout     = 5 * time.Second
	DefaultCapacityWarning = 0.8

	// Breaker defaults
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
	DefaultHalfOpenMaxCalls = 3
	DefaultMonitorInterval  = 30 * time.Second
	DefaultCallTimeout      = 30 * time.Second

	// Client defaults
	DefaultClientTimeout       = 30 * time.Second
	DefaultClientMaxAttempts   = 3
	DefaultClientRetryDelay    = time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Credentials defaults
	DefaultEnvPrefix = "MULTIMIND"

	// History defaults
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryRetentionDays = 90
	DefaultHistoryPruneSchedule = "0 3 * * *"
	DefaultHistoryBusyTimeout   = 5 * time.Second

	// NATS defaults
	DefaultNATSURL           = "nats://127.0.0.1:4222"
	DefaultNATSSubject       = "multimind.chat"
	DefaultNATSQueueGroup    = "relay"
	DefaultNATSMaxReconnects = -1
	DefaultNATSReconnectWait = 2 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "multimind"
	DefaultMetricsSubsystem   = "relay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "multimind-relay"
	DefaultTracingTimeout     = 10 * time.Second
)

// Default returns a complete configuration with every default applied,
// including the boolean switches that default to true. LoadConfig decodes
// the YAML file over it.
func Default() *Config {
	cfg := &Config{
		Proxy:       ProxyConfig{AutoStart: true},
		Credentials: CredentialsConfig{Watch: true},
		History:     HistoryConfig{Enabled: true},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactSecrets: true},
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Insecure: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default. Booleans
// are left alone; Default sets the ones that default to true.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyProxyDefaults(&cfg.Proxy)
	applyBreakerDefaults(&cfg.Breaker)
	applyClientDefaults(&cfg.Client)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Credentials.EnvPrefix == "" {
		cfg.Credentials.EnvPrefix = DefaultEnvPrefix
	}

	applyHistoryDefaults(&cfg.History)
	applyNATSDefaults(&cfg.NATS)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	cors := &s.CORS
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

func applyProxyDefaults(p *ProxyConfig) {
	if p.MaxQueueSize == 0 {
		p.MaxQueueSize = DefaultMaxQueueSize
	}
	if p.RateLimit == 0 {
		p.RateLimit = DefaultRateLimit
	}
	if p.RateWindow == 0 {
		p.RateWindow = DefaultRateWindow
	}
	if p.RequestTimeout == 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.DrainInterval == 0 {
		p.DrainInterval = DefaultDrainInterval
	}
	if p.HealthInterval == 0 {
		p.HealthInterval = DefaultHealthInterval
	}
	if p.CleanupInterval == 0 {
		p.CleanupInterval = DefaultCleanupInterval
	}
	if p.StopTimeout == 0 {
		p.StopTimeout = DefaultStopTimeout
	}
	if p.CapacityWarning == 0 {
		p.CapacityWarning = DefaultCapacityWarning
	}
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.FailureThreshold == 0 {
		b.FailureThreshold = DefaultFailureThreshold
	}
	if b.ResetTimeout == 0 {
		b.ResetTimeout = DefaultResetTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	if b.MonitorInterval == 0 {
		b.MonitorInterval = DefaultMonitorInterval
	}
	if b.CallTimeout == 0 {
		b.CallTimeout = DefaultCallTimeout
	}
}

func applyClientDefaults(c *ClientConfig) {
	if c.Timeout == 0 {
		c.Timeout = DefaultClientTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultClientMaxAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultClientRetryDelay
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = DefaultIdleConnTimeout
	}
}

func applyHistoryDefaults(h *HistoryConfig) {
	if h.Path == "" {
		h.Path = DefaultHistoryPath
	}
	if h.RetentionDays == 0 {
		h.RetentionDays = DefaultHistoryRetentionDays
	}
	if h.PruneSchedule == "" {
		h.PruneSchedule = DefaultHistoryPruneSchedule
	}
	if h.BusyTimeout == 0 {
		h.BusyTimeout = DefaultHistoryBusyTimeout
	}
}

func applyNATSDefaults(n *NATSConfig) {
	if n.URL == "" {
		n.URL = DefaultNATSURL
	}
	if n.Subject == "" {
		n.Subject = DefaultNATSSubject
	}
	if n.QueueGroup == "" {
		n.QueueGroup = DefaultNATSQueueGroup
	}
	if n.MaxReconnects == 0 {
		n.MaxReconnects = DefaultNATSMaxReconnects
	}
	if n.ReconnectWait == 0 {
		n.ReconnectWait = DefaultNATSReconnectWait
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 && t.Tracing.Sampler == "ratio" {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
}
