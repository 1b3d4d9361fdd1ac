package api

import (
	"errors"
	"net/http"
	"strings"

	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
)

// ChatRequest is the body of POST /v1/chat and of NATS chat requests.
type ChatRequest struct {
	// Provider is the provider name, e.g. "anthropic".
	Provider string `json:"provider"`

	// Model is the model id. Empty uses the provider's default model.
	Model string `json:"model,omitempty"`

	// Message is the user's text.
	Message string `json:"message"`

	// Priority is "high" or "medium" (default). Low priority is reserved
	// for in-process callers.
	Priority string `json:"priority,omitempty"`
}

// Validate checks the request and resolves its provider, model and
// priority.
func (r *ChatRequest) Validate() (providers.Provider, string, proxy.Priority, error) {
	p, err := providers.ParseProvider(strings.TrimSpace(r.Provider))
	if err != nil {
		return "", "", 0, providers.ValidationError(err.Error())
	}

	model := strings.TrimSpace(r.Model)
	if model == "" {
		model = providers.DefaultModel(p)
	}
	if strings.TrimSpace(r.Message) == "" {
		return "", "", 0, providers.ValidationError("Message cannot be empty")
	}

	priority := proxy.PriorityMedium
	if r.Priority != "" {
		priority, err = proxy.ParsePriority(r.Priority)
		if err != nil {
			return "", "", 0, providers.ValidationError(err.Error())
		}
		if priority == proxy.PriorityLow {
			return "", "", 0, providers.ValidationError(`priority "low" is reserved`)
		}
	}
	return p, model, priority, nil
}

// ErrorResponse is the body of every failed request:
//
//	{"error": {"message": "...", "status": 503, "code": "queue_full"}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Status is the status the relay attributes to the failure. It is 0 for
	// network failures, which are rendered as 502.
	Status int `json:"status"`

	// Code is a stable machine-readable identifier.
	Code string `json:"code,omitempty"`

	// Guidance is the hint shown to end users, when one applies.
	Guidance string `json:"guidance,omitempty"`
}

// Error codes produced by the relay itself.
const (
	CodeInvalidJSON      = "invalid_json"
	CodeRequestTooLarge  = "request_too_large"
	CodeChatNotFound     = "chat_not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternalError    = "internal_error"
)

// NewErrorResponse creates an error response with the given details.
func NewErrorResponse(message string, status int, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Status:  status,
			Code:    code,
		},
	}
}

// FromError maps err to an error response and the HTTP status to send.
func FromError(err error) (*ErrorResponse, int) {
	if errors.Is(err, history.ErrNotFound) {
		return NewErrorResponse("Chat not found", http.StatusNotFound, CodeChatNotFound), http.StatusNotFound
	}

	var apiErr *providers.APIError
	if !errors.As(err, &apiErr) {
		return NewErrorResponse("An internal error occurred. Please try again later.",
			http.StatusInternalServerError, CodeInternalError), http.StatusInternalServerError
	}

	resp := NewErrorResponse(apiErr.Message, apiErr.Status, apiErr.Code)
	return resp, HTTPStatus(apiErr)
}

// HTTPStatus returns the HTTP status used to render err.
func HTTPStatus(err *providers.APIError) int {
	switch {
	case err.Kind == providers.KindCancelled:
		return 499
	case err.Status == 0:
		return http.StatusBadGateway
	case err.Status < 400 || err.Status > 599:
		return http.StatusInternalServerError
	default:
		return err.Status
	}
}
