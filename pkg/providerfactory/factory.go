// Package providerfactory builds provider clients and caches one per
// provider.
package providerfactory

import (
	"fmt"
	"log/slog"

	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/providers/anthropic"
	"multimind-hq/relay/pkg/providers/cloudflare"
	"multimind-hq/relay/pkg/providers/google"
	"multimind-hq/relay/pkg/providers/openai"
	"multimind-hq/relay/pkg/providers/openrouter"
)

// ConfigError reports a provider that cannot be built.
type ConfigError struct {
	Provider string
	Message  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Message)
}

// NewClient creates an uncached client for p.
func NewClient(p providers.Provider, creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	var adapter providers.Adapter
	switch p {
	case providers.OpenAI:
		adapter = openai.New()
	case providers.Anthropic:
		adapter = anthropic.New()
	case providers.Google:
		adapter = google.New()
	case providers.OpenRouter:
		adapter = openrouter.New("")
	case providers.Cloudflare:
		adapter = cloudflare.New()
	default:
		return nil, &ConfigError{
			Provider: string(p),
			Message:  "unsupported provider (supported: openai, anthropic, google, openrouter, cloudflare)",
		}
	}

	client, err := providers.NewClient(p, adapter, creds, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client %q: %w", p, err)
	}

	slog.Debug("provider client created", "provider", string(p))
	return client, nil
}
