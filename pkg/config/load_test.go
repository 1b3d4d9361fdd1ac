package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multimind.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: "60s"

proxy:
  rate_limit: 10
  rate_window: 30s
  auto_start: false

providers:
  cloudflare:
    gateway_url: "https://gateway.example.com/v1/acct/gw"
  openai:
    api_key: "sk-test"

history:
  enabled: false

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout %v, got %v", 60*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Proxy.RateLimit != 10 || cfg.Proxy.RateWindow != 30*time.Second {
		t.Errorf("unexpected rate window %d/%v", cfg.Proxy.RateLimit, cfg.Proxy.RateWindow)
	}
	if cfg.Proxy.AutoStart {
		t.Error("expected auto_start false from file")
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled from file")
	}
	if cfg.Providers["cloudflare"].GatewayURL == "" {
		t.Error("expected cloudflare gateway")
	}
	if cfg.Providers["openai"].APIKey != "sk-test" {
		t.Errorf("unexpected openai key %q", cfg.Providers["openai"].APIKey)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_OmittedFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, "proxy:\n  rate_limit: 7\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Proxy.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("expected default queue size, got %d", cfg.Proxy.MaxQueueSize)
	}
	if !cfg.Proxy.AutoStart || !cfg.History.Enabled || !cfg.Telemetry.Metrics.Enabled {
		t.Error("boolean defaults lost when the file omits them")
	}
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected defaults, got %q", cfg.Server.ListenAddress)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "proxy:\n  rate_limit: [unclosed\n")

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "providers:\n  mistral:\n    api_key: x\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "providers.mistral" {
		t.Errorf("unexpected field %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: "from-file"
`)

	t.Setenv("MULTIMIND_SERVER_LISTEN_ADDRESS", "127.0.0.1:9999")
	t.Setenv("MULTIMIND_PROXY_RATE_LIMIT", "12")
	t.Setenv("MULTIMIND_PROXY_RATE_WINDOW", "15s")
	t.Setenv("MULTIMIND_PROXY_MAX_QUEUE_SIZE", "not-a-number")
	t.Setenv("MULTIMIND_NATS_ENABLED", "true")
	t.Setenv("MULTIMIND_HISTORY_ENABLED", "false")
	t.Setenv("MULTIMIND_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("MULTIMIND_PROVIDERS_OPENAI_API_KEY", "from-env")
	t.Setenv("MULTIMIND_SERVER_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Proxy.RateLimit != 12 || cfg.Proxy.RateWindow != 15*time.Second {
		t.Errorf("rate window = %d/%v", cfg.Proxy.RateLimit, cfg.Proxy.RateWindow)
	}
	if cfg.Proxy.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("malformed override must be ignored, got %d", cfg.Proxy.MaxQueueSize)
	}
	if !cfg.NATS.Enabled || cfg.History.Enabled {
		t.Error("boolean overrides not applied")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Providers["openai"].APIKey != "from-env" {
		t.Errorf("provider key = %q", cfg.Providers["openai"].APIKey)
	}
	if len(cfg.Server.CORS.AllowedOrigins) != 2 || cfg.Server.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Server.CORS.AllowedOrigins)
	}
}

func TestLoadConfigWithEnvOverrides_ListenAlias(t *testing.T) {
	t.Setenv("MULTIMIND_LISTEN_ADDRESS", "127.0.0.1:7000")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidAfterOverride(t *testing.T) {
	t.Setenv("MULTIMIND_TELEMETRY_LOGGING_LEVEL", "loud")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Fatalf("expected override validation error, got %v", err)
	}
}
