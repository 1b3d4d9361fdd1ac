package google

import (
	"net/http"

	"multimind-hq/relay/pkg/providers"
)

// DefaultBaseURL is used when no gateway override is stored.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter implements providers.Adapter, providers.ModelLister and
// providers.ErrorParser.
type Adapter struct{}

// New returns the Gemini adapter.
func New() *Adapter {
	return &Adapter{}
}

// NewClient builds a ready ChatClient for Google.
func NewClient(creds providers.CredentialStore, cfg providers.ClientConfig, opts ...providers.ClientOption) (*providers.Client, error) {
	return providers.NewClient(providers.Google, New(), creds, cfg, opts...)
}

// FormatRequest implements providers.Adapter.
func (a *Adapter) FormatRequest(target providers.Target, message, model string) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    target.Base(DefaultBaseURL) + "/" + NormalizeModel(model) + ":generateContent",
		Headers: map[string]string{
			"x-goog-api-key": target.APIKey,
		},
		Body: transformRequest(message),
	}, nil
}

// ParseResponse implements providers.Adapter.
func (a *Adapter) ParseResponse(body []byte) (*providers.Completion, error) {
	return transformResponse(body)
}

// ParseError implements providers.ErrorParser.
func (a *Adapter) ParseError(body []byte) error {
	resp, err := decodeResponse(body)
	if err != nil || resp.Error == nil {
		return nil
	}
	status := resp.Error.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return providers.HTTPError(providers.Google, status, resp.Error.Status, resp.Error.Message)
}

// ModelsRequest implements providers.ModelLister.
func (a *Adapter) ModelsRequest(target providers.Target) (*providers.HTTPRequest, error) {
	return &providers.HTTPRequest{
		Method: http.MethodGet,
		URL:    target.Base(DefaultBaseURL) + "/models",
		Headers: map[string]string{
			"x-goog-api-key": target.APIKey,
		},
	}, nil
}

// ParseModels implements providers.ModelLister.
func (a *Adapter) ParseModels(body []byte) ([]providers.Model, error) {
	return transformModels(body)
}
