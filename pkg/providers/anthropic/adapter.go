package anthropic

import (
	"net/http"

	"multimind-hq/relay/pkg/providers"
)

const (
	// DefaultBaseURL is used when no gateway override is stored.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"
)

// Adapter implements providers.Adapter.
type Adapter struct{}

// New returns the Anthropic adapter.
func New() *Adapter {
	return &Adapter{}
}

// NewClient builds a ready ChatClient for Anthropic.
func NewClient(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	return providers.NewClient(providers.Anthropic, New(), creds, cfg, opts...)
}

// FormatRequest implements providers.Adapter.
func (a *Adapter) FormatRequest(target providers.Target, message, model string) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    target.Base(DefaultBaseURL) + "/v1/messages",
		Headers: map[string]string{
			"x-api-key":         target.APIKey,
			"anthropic-version": APIVersion,
		},
		Body: transformRequest(message, model),
	}, nil
}

// ParseResponse implements providers.Adapter.
func (a *Adapter) ParseResponse(body []byte) (*providers.Completion, error) {
	return transformResponse(body)
}
