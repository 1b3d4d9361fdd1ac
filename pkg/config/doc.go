// Package config provides configuration management for the MultiMind relay.
//
// Configuration is read from a YAML file decoded over the built-in defaults,
// optionally overridden by environment variables, and validated before use.
//
//	cfg, err := config.LoadConfigWithEnvOverrides("multimind.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MULTIMIND_SECTION_FIELD:
//
//   - MULTIMIND_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - MULTIMIND_PROXY_RATE_LIMIT overrides proxy.rate_limit
//   - MULTIMIND_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Provider credentials use MULTIMIND_<PROVIDER>_API_KEY and are read by the
// credentials package, not here.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation errors carry field paths:
//
//	configuration validation failed with 2 errors:
//	  - proxy.rate_limit: rate limit must be positive
//	  - providers.mistral: unknown provider "mistral"
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8787"
//
//	proxy:
//	  rate_limit: 50
//	  rate_window: 60s
//	  max_queue_size: 100
//
//	providers:
//	  cloudflare:
//	    gateway_url: "https://gateway.ai.cloudflare.com/v1/acct/gw"
//
//	credentials:
//	  file: "~/.multimind/credentials.yaml"
//
//	history:
//	  path: "data/history.db"
//	  retention_days: 30
//
// # Process-wide configuration
//
// Initialize stores a loaded configuration for GetConfig. Reload re-reads the
// same file and runs the hooks registered with OnReload. Prefer passing a
// *Config explicitly; the global exists for the command layer.
package config
