package providers

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies one LLM vendor. The set is closed; values are looked
// up with ParseProvider, never constructed from arbitrary strings.
type Provider string

const (
	OpenAI     Provider = "openai"
	Anthropic  Provider = "anthropic"
	Google     Provider = "google"
	OpenRouter Provider = "openrouter"
	Cloudflare Provider = "cloudflare"
)

// Capability is a coarse feature tag shown next to providers and models.
type Capability string

const (
	CapabilityChat     Capability = "chat"
	CapabilityCode     Capability = "code"
	CapabilityAnalysis Capability = "analysis"
	CapabilityVision   Capability = "vision"
)

// ProviderInfo is the static description of a provider.
type ProviderInfo struct {
	ID           Provider     `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description" yaml:"description"`
	RequiresKey  bool         `json:"requires_key" yaml:"requires_key"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
}

var registry = map[Provider]ProviderInfo{
	OpenAI: {
		ID:           OpenAI,
		Name:         "OpenAI",
		Description:  "GPT-3.5, GPT-4, and DALL·E models",
		RequiresKey:  true,
		Capabilities: []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis},
	},
	Anthropic: {
		ID:           Anthropic,
		Name:         "Anthropic",
		Description:  "Claude models with long context support",
		RequiresKey:  true,
		Capabilities: []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis},
	},
	Google: {
		ID:           Google,
		Name:         "Google AI",
		Description:  "Gemini series models including Pro 1.5",
		RequiresKey:  true,
		Capabilities: []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis, CapabilityVision},
	},
	OpenRouter: {
		ID:           OpenRouter,
		Name:         "OpenRouter",
		Description:  "Access to multiple model providers",
		RequiresKey:  true,
		Capabilities: []Capability{CapabilityChat, CapabilityCode},
	},
	Cloudflare: {
		ID:           Cloudflare,
		Name:         "Cloudflare",
		Description:  "Workers AI models served through a gateway",
		RequiresKey:  false,
		Capabilities: []Capability{CapabilityChat, CapabilityCode},
	},
}

var providerOrder = []Provider{OpenAI, Anthropic, Google, OpenRouter, Cloudflare}

// AllProviders returns every known provider in display order.
func AllProviders() []Provider {
	out := make([]Provider, len(providerOrder))
	copy(out, providerOrder)
	return out
}

// ParseProvider resolves a provider name, case-insensitively.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[p]; !ok {
		return "", fmt.Errorf("unknown provider: %q", name)
	}
	return p, nil
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	_, ok := registry[p]
	return ok
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// Lookup returns the static info for p.
func Lookup(p Provider) (ProviderInfo, error) {
	info, ok := registry[p]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("unknown provider: %q", string(p))
	}
	return info, nil
}

// Registry returns the info for every provider in display order.
func Registry() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(providerOrder))
	for _, p := range providerOrder {
		out = append(out, registry[p])
	}
	return out
}

// HasCapability reports whether the provider advertises c.
func (i ProviderInfo) HasCapability(c Capability) bool {
	for _, have := range i.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ChatClient sends messages to one provider. Implementations are safe for
// concurrent use.
type ChatClient interface {
	// Provider returns the provider this client talks to.
	Provider() Provider

	// SendMessage delivers one user message and returns the normalized reply.
	SendMessage(ctx context.Context, message, model string) (*Reply, error)

	// FetchModels lists the models the provider currently serves. Providers
	// without a listing endpoint fail with ErrNotImplemented.
	FetchModels(ctx context.Context) ([]Model, error)

	// StopResponse cancels every in-flight call made through this client.
	StopResponse()
}

// CredentialStore supplies credentials and gateway overrides. Both maps are
// read before each request, so changes apply to the next call.
type CredentialStore interface {
	Credentials() map[Provider]string
	GatewayOverrides() map[Provider]string
}
