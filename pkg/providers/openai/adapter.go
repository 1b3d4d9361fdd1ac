package openai

import (
	"net/http"

	"multimind-hq/relay/pkg/providers"
)

// DefaultBaseURL is used when no gateway override is stored.
const DefaultBaseURL = "https://api.openai.com/v1"

// Adapter implements providers.Adapter and providers.ModelLister.
type Adapter struct{}

// New returns the OpenAI adapter.
func New() *Adapter {
	return &Adapter{}
}

// NewClient builds a ready ChatClient for OpenAI.
func NewClient(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	return providers.NewClient(providers.OpenAI, New(), creds, cfg, opts...)
}

// FormatRequest implements providers.Adapter.
func (a *Adapter) FormatRequest(target providers.Target, message, model string) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    target.Base(DefaultBaseURL) + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + target.APIKey,
		},
		Body: NewChatRequest(message, model),
	}, nil
}

// ParseResponse implements providers.Adapter.
func (a *Adapter) ParseResponse(body []byte) (*providers.Completion, error) {
	return providers.ParseEnvelope(providers.OpenAI, body)
}

// ModelsRequest implements providers.ModelLister.
func (a *Adapter) ModelsRequest(target providers.Target) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method: http.MethodGet,
		URL:    target.Base(DefaultBaseURL) + "/models",
		Headers: map[string]string{
			"Authorization": "Bearer " + target.APIKey,
		},
	}, nil
}

// ParseModels implements providers.ModelLister.
func (a *Adapter) ParseModels(body []byte) ([]providers.Model, error) {
	return transformModels(body)
}
