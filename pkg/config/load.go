package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default, so omitted fields keep their defaults,
// then the result is validated. An empty path yields the defaults.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MULTIMIND_SECTION_FIELD (e.g., MULTIMIND_SERVER_LISTEN_ADDRESS)
// and always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file over the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numbers, durations and booleans are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("MULTIMIND_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	if os.Getenv("MULTIMIND_SERVER_LISTEN_ADDRESS") == "" {
		envString("MULTIMIND_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	}
	envDuration("MULTIMIND_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("MULTIMIND_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("MULTIMIND_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("MULTIMIND_SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	if val := os.Getenv("MULTIMIND_SERVER_CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.Server.CORS.AllowedOrigins = splitList(val)
	}

	// Engine overrides
	envInt("MULTIMIND_PROXY_MAX_QUEUE_SIZE", &cfg.Proxy.MaxQueueSize)
	envInt("MULTIMIND_PROXY_RATE_LIMIT", &cfg.Proxy.RateLimit)
	envDuration("MULTIMIND_PROXY_RATE_WINDOW", &cfg.Proxy.RateWindow)
	envDuration("MULTIMIND_PROXY_REQUEST_TIMEOUT", &cfg.Proxy.RequestTimeout)
	envInt("MULTIMIND_PROXY_MAX_RETRIES", &cfg.Proxy.MaxRetries)
	envDuration("MULTIMIND_PROXY_RETRY_DELAY", &cfg.Proxy.RetryDelay)
	envInt("MULTIMIND_PROXY_MAX_IN_FLIGHT", &cfg.Proxy.MaxInFlight)
	envBool("MULTIMIND_PROXY_AUTO_START", &cfg.Proxy.AutoStart)

	// Breaker overrides
	envInt("MULTIMIND_BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold)
	envDuration("MULTIMIND_BREAKER_RESET_TIMEOUT", &cfg.Breaker.ResetTimeout)

	// Client overrides
	envDuration("MULTIMIND_CLIENT_TIMEOUT", &cfg.Client.Timeout)
	envInt("MULTIMIND_CLIENT_MAX_ATTEMPTS", &cfg.Client.MaxAttempts)

	// Credentials overrides
	envString("MULTIMIND_CREDENTIALS_FILE", &cfg.Credentials.File)
	envBool("MULTIMIND_CREDENTIALS_WATCH", &cfg.Credentials.Watch)

	// History overrides
	envBool("MULTIMIND_HISTORY_ENABLED", &cfg.History.Enabled)
	envString("MULTIMIND_HISTORY_PATH", &cfg.History.Path)
	envInt("MULTIMIND_HISTORY_RETENTION_DAYS", &cfg.History.RetentionDays)
	envString("MULTIMIND_HISTORY_PRUNE_SCHEDULE", &cfg.History.PruneSchedule)

	// NATS overrides
	envBool("MULTIMIND_NATS_ENABLED", &cfg.NATS.Enabled)
	envString("MULTIMIND_NATS_URL", &cfg.NATS.URL)
	envString("MULTIMIND_NATS_SUBJECT", &cfg.NATS.Subject)
	envString("MULTIMIND_NATS_QUEUE_GROUP", &cfg.NATS.QueueGroup)

	// Telemetry overrides
	envString("MULTIMIND_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("MULTIMIND_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("MULTIMIND_TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("MULTIMIND_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("MULTIMIND_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("MULTIMIND_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("MULTIMIND_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("MULTIMIND_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	if val := os.Getenv("MULTIMIND_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
	envBool("MULTIMIND_TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)

	// Provider overrides for every provider already present in the file.
	// Credential variables for the rest are read by the credentials package.
	for name, p := range cfg.Providers {
		prefix := "MULTIMIND_PROVIDERS_" + strings.ToUpper(name) + "_"
		envString(prefix+"API_KEY", &p.APIKey)
		envString(prefix+"GATEWAY_URL", &p.GatewayURL)
		cfg.Providers[name] = p
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
