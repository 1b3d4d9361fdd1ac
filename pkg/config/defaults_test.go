package config

import (
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"listen address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"max queue size", cfg.Proxy.MaxQueueSize, 100},
		{"rate limit", cfg.Proxy.RateLimit, 50},
		{"rate window", cfg.Proxy.RateWindow, 60 * time.Second},
		{"request timeout", cfg.Proxy.RequestTimeout, 30 * time.Second},
		{"max retries", cfg.Proxy.MaxRetries, 3},
		{"max in-flight", cfg.Proxy.MaxInFlight, 0},
		{"retry delay", cfg.Proxy.RetryDelay, time.Second},
		{"auto start", cfg.Proxy.AutoStart, true},
		{"failure threshold", cfg.Breaker.FailureThreshold, 5},
		{"reset timeout", cfg.Breaker.ResetTimeout, 60 * time.Second},
		{"half-open calls", cfg.Breaker.HalfOpenMaxCalls, 3},
		{"client timeout", cfg.Client.Timeout, 30 * time.Second},
		{"client attempts", cfg.Client.MaxAttempts, 3},
		{"credentials watch", cfg.Credentials.Watch, true},
		{"env prefix", cfg.Credentials.EnvPrefix, "MULTIMIND"},
		{"history enabled", cfg.History.Enabled, true},
		{"prune schedule", cfg.History.PruneSchedule, "0 3 * * *"},
		{"nats enabled", cfg.NATS.Enabled, false},
		{"nats subject", cfg.NATS.Subject, "multimind.chat"},
		{"log level", cfg.Telemetry.Logging.Level, "info"},
		{"redact secrets", cfg.Telemetry.Logging.RedactSecrets, true},
		{"metrics enabled", cfg.Telemetry.Metrics.Enabled, true},
		{"tracing enabled", cfg.Telemetry.Tracing.Enabled, false},
		{"sample ratio", cfg.Telemetry.Tracing.SampleRatio, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ListenAddress: "0.0.0.0:9000"},
		Proxy:  ProxyConfig{RateLimit: 5, MaxRetries: 1},
	}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Proxy.RateLimit != 5 || cfg.Proxy.MaxRetries != 1 {
		t.Errorf("engine values overwritten: %+v", cfg.Proxy)
	}
	if cfg.Proxy.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("expected default queue size, got %d", cfg.Proxy.MaxQueueSize)
	}
	if cfg.Providers == nil {
		t.Error("expected providers map to be initialized")
	}
	if cfg.History.Enabled {
		t.Error("ApplyDefaults must not flip booleans")
	}
}

func TestApplyDefaults_NeverSamplerKeepsZeroRatio(t *testing.T) {
	cfg := &Config{}
	cfg.Telemetry.Tracing.Sampler = "never"
	ApplyDefaults(cfg)

	if cfg.Telemetry.Tracing.SampleRatio != 0 {
		t.Errorf("expected ratio 0 for never sampler, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}
