package openrouter

import (
	"net/http"

	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/providers/openai"
)

const (
	// DefaultBaseURL is used when no gateway override is stored.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultReferer identifies the app in OpenRouter rankings.
	DefaultReferer = "https://multimind.chat"

	appTitle = "MultiMind Chat"
)

// Adapter implements providers.Adapter and providers.ModelLister.
type Adapter struct {
	referer string
}

// New returns the OpenRouter adapter. An empty referer uses DefaultReferer.
func New(referer string) *Adapter {
	if referer == "" {
		referer = DefaultReferer
	}
	return &Adapter{referer: referer}
}

// NewClient builds a ready ChatClient for OpenRouter.
func NewClient(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	return providers.NewClient(providers.OpenRouter, New(""), creds, cfg, opts...)
}

func (a *Adapter) headers(target providers.Target) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + target.APIKey,
		"HTTP-Referer":  a.referer,
		"X-Title":       appTitle,
	}
}

// FormatRequest implements providers.Adapter.
func (a *Adapter) FormatRequest(target providers.Target, message, model string) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method:  http.MethodPost,
		URL:     target.Base(DefaultBaseURL) + "/chat/completions",
		Headers: a.headers(target),
		Body:    openai.NewChatRequest(message, ResolveModel(model)),
	}, nil
}

// ParseResponse implements providers.Adapter.
func (a *Adapter) ParseResponse(body []byte) (*providers.Completion, error) {
	return providers.ParseEnvelope(providers.OpenRouter, body)
}

// ModelsRequest implements providers.ModelLister.
func (a *Adapter) ModelsRequest(target providers.Target) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method:  http.MethodGet,
		URL:     target.Base(DefaultBaseURL) + "/models",
		Headers: a.headers(target),
	}, nil
}

// ParseModels implements providers.ModelLister.
func (a *Adapter) ParseModels(body []byte) ([]providers.Model, error) {
	return transformModels(body)
}
