package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"multimind-hq/relay/pkg/providers"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.rate_limit").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateBreaker(&cfg.Breaker)...)
	errs = append(errs, validateClient(&cfg.Client)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateNATS(&cfg.NATS)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates the HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.allowed_origins",
			Message: "at least one origin is required when CORS is enabled",
		})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}

	return errs
}

// validateProxy validates the request engine constants.
func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxQueueSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_queue_size",
			Message: "max queue size must be positive",
		})
	}
	if cfg.RateLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.rate_limit",
			Message: "rate limit must be positive",
		})
	}
	if cfg.RateWindow <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.rate_window",
			Message: "rate window must be positive",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.request_timeout",
			Message: "request timeout must be positive",
		})
	}
	if cfg.MaxRetries > 10 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_retries",
			Message: "max retries exceeds reasonable limit (10)",
		})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.retry_delay",
			Message: "retry delay must be non-negative",
		})
	}
	if cfg.MaxInFlight < 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_in_flight",
			Message: "max in-flight must be non-negative",
		})
	}
	if cfg.HealthInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.health_interval",
			Message: "health interval must be positive",
		})
	}
	if cfg.CleanupInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.cleanup_interval",
			Message: "cleanup interval must be positive",
		})
	}
	if cfg.StopTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "proxy.stop_timeout",
			Message: "stop timeout must be positive",
		})
	}
	if cfg.CapacityWarning <= 0 || cfg.CapacityWarning > 1 {
		errs = append(errs, FieldError{
			Field:   "proxy.capacity_warning",
			Message: "capacity warning must be in (0, 1]",
		})
	}

	return errs
}

// validateBreaker validates the circuit breaker thresholds.
func validateBreaker(cfg *BreakerConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_threshold",
			Message: "failure threshold must be positive",
		})
	}
	if cfg.ResetTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.reset_timeout",
			Message: "reset timeout must be positive",
		})
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.half_open_max_calls",
			Message: "half-open max calls must be positive",
		})
	}
	if cfg.MonitorInterval <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.monitor_interval",
			Message: "monitor interval must be positive",
		})
	}
	if cfg.CallTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.call_timeout",
			Message: "call timeout must be positive",
		})
	}

	return errs
}

// validateClient validates the provider HTTP client settings.
func validateClient(cfg *ClientConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "client.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxAttempts == 0 {
		errs = append(errs, FieldError{
			Field:   "client.max_attempts",
			Message: "max attempts must be set; use a negative value for a single attempt",
		})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "client.retry_delay",
			Message: "retry delay must be non-negative",
		})
	}
	if cfg.MaxIdleConns < 0 || cfg.MaxIdleConnsPerHost < 0 {
		errs = append(errs, FieldError{
			Field:   "client.max_idle_conns",
			Message: "connection pool sizes must be non-negative",
		})
	}

	return errs
}

// validateProviders validates provider names and gateway overrides. Empty
// API keys are allowed; they may come from the credentials file or the
// environment.
func validateProviders(configured map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for name, provider := range configured {
		prefix := fmt.Sprintf("providers.%s", name)

		if _, err := providers.ParseProvider(name); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix,
				Message: fmt.Sprintf("unknown provider %q", name),
			})
			continue
		}

		if provider.GatewayURL != "" {
			if err := providers.ValidateGatewayURL(provider.GatewayURL); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".gateway_url",
					Message: err.Error(),
				})
			}
		}
	}

	return errs
}

// validateHistory validates the chat history store configuration.
func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "path is required when history is enabled",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "history.prune_schedule",
			Message: fmt.Sprintf("invalid cron schedule: %v", err),
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "history.busy_timeout",
			Message: "busy timeout must be non-negative",
		})
	}

	return errs
}

// validateNATS validates the NATS bridge configuration.
func validateNATS(cfg *NATSConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "nats.url",
			Message: "URL is required when NATS is enabled",
		})
	} else if u, err := url.Parse(cfg.URL); err != nil || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "nats.url",
			Message: fmt.Sprintf("invalid URL %q", cfg.URL),
		})
	}
	if cfg.Subject == "" || strings.ContainsAny(cfg.Subject, " \t*>") {
		errs = append(errs, FieldError{
			Field:   "nats.subject",
			Message: "subject must be a literal subject without wildcards",
		})
	}
	if cfg.ReconnectWait < 0 {
		errs = append(errs, FieldError{
			Field:   "nats.reconnect_wait",
			Message: "reconnect wait must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be: json, text, console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.LatencyBuckets); i++ {
		if cfg.Metrics.LatencyBuckets[i] <= cfg.Metrics.LatencyBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.latency_buckets",
				Message: "buckets must be in strictly increasing order",
			})
			break
		}
	}

	if cfg.Tracing.Enabled {
		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0.0 and 1.0",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Timeout <= 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.timeout",
				Message: "timeout must be positive",
			})
		}
	}

	return errs
}
