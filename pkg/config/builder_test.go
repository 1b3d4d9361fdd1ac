package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts from Default and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a ConfigBuilder whose result is valid as built.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.History.Path = "test-history.db"
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithRateLimit sets the engine rate window.
func (b *ConfigBuilder) WithRateLimit(limit int, window time.Duration) *ConfigBuilder {
	b.cfg.Proxy.RateLimit = limit
	b.cfg.Proxy.RateWindow = window
	return b
}

// WithQueueSize sets the engine queue capacity.
func (b *ConfigBuilder) WithQueueSize(size int) *ConfigBuilder {
	b.cfg.Proxy.MaxQueueSize = size
	return b
}

// WithProvider adds or updates a provider configuration.
func (b *ConfigBuilder) WithProvider(name string, provider ProviderConfig) *ConfigBuilder {
	b.cfg.Providers[name] = provider
	return b
}

// WithHistory sets the history path and retention.
func (b *ConfigBuilder) WithHistory(path string, retentionDays int) *ConfigBuilder {
	b.cfg.History.Enabled = true
	b.cfg.History.Path = path
	b.cfg.History.RetentionDays = retentionDays
	return b
}

// WithNATS enables the NATS bridge.
func (b *ConfigBuilder) WithNATS(url string) *ConfigBuilder {
	b.cfg.NATS.Enabled = true
	b.cfg.NATS.URL = url
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracing enables tracing with the given sampler.
func (b *ConfigBuilder) WithTracing(sampler string, ratio float64) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Sampler = sampler
	b.cfg.Telemetry.Tracing.SampleRatio = ratio
	return b
}
