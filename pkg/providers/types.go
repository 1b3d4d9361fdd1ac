package providers

import (
	"encoding/json"
	"strings"
)

// Role constants for chat turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TokenUsage reports token consumption for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized assistant output.
type Completion struct {
	Response string      `json:"response"`
	Usage    *TokenUsage `json:"usage,omitempty"`
}

// Reply is what SendMessage resolves with. It serialises as
// {"success": true, "result": {"response": ..., "usage": ...}}.
type Reply struct {
	Success bool       `json:"success"`
	Result  Completion `json:"result"`

	// Attempts is the number of HTTP attempts the client made.
	Attempts int `json:"-"`
}

// ChatMessage is the OpenAI-style message shape most providers accept.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Target is everything an adapter needs to address a provider for one call.
type Target struct {
	APIKey  string
	BaseURL string // gateway override; empty means the provider default
}

// Base returns the override when set, else def, without a trailing slash.
func (t Target) Base(def string) string {
	if t.BaseURL != "" {
		return strings.TrimRight(t.BaseURL, "/")
	}
	return strings.TrimRight(def, "/")
}

// HTTPRequest is a provider-native request produced by an adapter.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Adapter captures everything that differs between providers. One
// implementation exists per provider; the shared Client does the rest.
type Adapter interface {
	// FormatRequest builds the chat request for message and model.
	FormatRequest(target Target, message, model string) (*HTTPRequest, error)

	// ParseResponse decodes a 2xx body and maps it to a Completion. Bodies
	// without extractable assistant text fail with ErrInvalidResponse.
	ParseResponse(body []byte) (*Completion, error)
}

// ModelLister is implemented by adapters whose provider has a listing
// endpoint.
type ModelLister interface {
	ModelsRequest(target Target) (*HTTPRequest, error)
	ParseModels(body []byte) ([]Model, error)
}

// ErrorParser is implemented by adapters whose provider reports failures
// inside a 2xx body.
type ErrorParser interface {
	ParseError(body []byte) error
}

// Envelope covers the response shapes shared by OpenAI-compatible endpoints
// and generic gateways: choices[0].message.content or result.response.
type Envelope struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Result *struct {
		Response *string `json:"response"`
	} `json:"result"`
	Usage *TokenUsage `json:"usage"`
}

// DecodeEnvelope parses body into an Envelope.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Text returns the assistant text and whether one of the recognized shapes
// carried it.
func (e *Envelope) Text() (string, bool) {
	if len(e.Choices) > 0 {
		if text := strings.TrimSpace(e.Choices[0].Message.Content); text != "" {
			return text, true
		}
	}
	if e.Result != nil && e.Result.Response != nil {
		if text := strings.TrimSpace(*e.Result.Response); text != "" {
			return text, true
		}
	}
	return "", false
}

// ParseEnvelope is the ParseResponse used by OpenAI-compatible adapters.
func ParseEnvelope(p Provider, body []byte) (*Completion, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, InvalidResponseError(p, "Invalid response format from API")
	}
	text, ok := env.Text()
	if !ok {
		return nil, InvalidResponseError(p, "Invalid response format from API")
	}
	return &Completion{Response: text, Usage: env.Usage}, nil
}

// errorEnvelope is the common {"error": {...}} failure body.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseErrorBody extracts the message and code from a failure body. Bodies
// that are not JSON yield empty strings.
func parseErrorBody(body []byte) (message, code string) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", ""
	}
	switch c := env.Error.Code.(type) {
	case string:
		code = c
	}
	if code == "" {
		code = env.Error.Type
	}
	return env.Error.Message, code
}
