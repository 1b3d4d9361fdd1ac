package cloudflare

import (
	"net/http"

	"multimind-hq/relay/pkg/providers"
)

// DefaultBaseURL is the local gateway worker.
const DefaultBaseURL = "http://localhost:8787"

// ChatRequest is the gateway request body.
type ChatRequest struct {
	Messages []providers.ChatMessage `json:"messages"`
	Model    string                  `json:"model"`
	Provider string                  `json:"provider"`
}

// Adapter implements providers.Adapter.
type Adapter struct{}

// New returns the Cloudflare adapter.
func New() *Adapter {
	return &Adapter{}
}

// NewClient builds a ready ChatClient for Cloudflare.
func NewClient(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	return providers.NewClient(providers.Cloudflare, New(), creds, cfg, opts...)
}

// FormatRequest implements providers.Adapter.
func (a *Adapter) FormatRequest(target providers.Target, message, model string) (*providers.HTTPRequest, error) {
	headers := map[string]string{}
	if target.APIKey != "" {
		headers["Authorization"] = "Bearer " + target.APIKey
	}
	return &providers.HTTPRequest{
		Method:  http.MethodPost,
		URL:     target.Base(DefaultBaseURL) + "/chat/completions",
		Headers: headers,
		Body: &ChatRequest{
			Messages: []providers.ChatMessage{{Role: providers.RoleUser, Content: message}},
			Model:    model,
			Provider: string(providers.Cloudflare),
		},
	}, nil
}

// ParseResponse implements providers.Adapter.
func (a *Adapter) ParseResponse(body []byte) (*providers.Completion, error) {
	return providers.ParseEnvelope(providers.Cloudflare, body)
}
