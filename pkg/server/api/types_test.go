package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
)

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name         string
		req          ChatRequest
		wantProvider providers.Provider
		wantModel    string
		wantPriority proxy.Priority
		wantErr      bool
	}{
		{
			name:         "explicit model",
			req:          ChatRequest{Provider: "anthropic", Model: "claude-3-opus-20240229", Message: "hi"},
			wantProvider: providers.Anthropic,
			wantModel:    "claude-3-opus-20240229",
			wantPriority: proxy.PriorityMedium,
		},
		{
			name:         "default model",
			req:          ChatRequest{Provider: "openai", Message: "hi"},
			wantProvider: providers.OpenAI,
			wantModel:    providers.DefaultModel(providers.OpenAI),
			wantPriority: proxy.PriorityMedium,
		},
		{
			name:         "high priority",
			req:          ChatRequest{Provider: "google", Model: "gemini-pro", Message: "hi", Priority: "high"},
			wantProvider: providers.Google,
			wantModel:    "gemini-pro",
			wantPriority: proxy.PriorityHigh,
		},
		{name: "unknown provider", req: ChatRequest{Provider: "acme", Message: "hi"}, wantErr: true},
		{name: "empty message", req: ChatRequest{Provider: "openai", Message: "  "}, wantErr: true},
		{name: "low priority reserved", req: ChatRequest{Provider: "openai", Message: "hi", Priority: "low"}, wantErr: true},
		{name: "bad priority", req: ChatRequest{Provider: "openai", Message: "hi", Priority: "urgent"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, model, priority, err := tt.req.Validate()
			if tt.wantErr {
				if !errors.Is(err, providers.ErrValidation) {
					t.Errorf("Validate() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if p != tt.wantProvider || model != tt.wantModel || priority != tt.wantPriority {
				t.Errorf("Validate() = %s, %s, %v", p, model, priority)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantHTTP   int
		wantStatus int
		wantCode   string
	}{
		{"validation", providers.ValidationError("Message cannot be empty"), 400, 400, "validation"},
		{"auth", providers.HTTPError(providers.OpenAI, 401, "invalid_api_key", "bad key"), 401, 401, "invalid_api_key"},
		{"queue full", providers.NewError(providers.KindQueueFull, "Queue is full"), 503, 503, "queue_full"},
		{"network", providers.NetworkError(providers.OpenAI, errors.New("refused")), 502, 0, "network_error"},
		{"cancelled", providers.CancelledError(context.Canceled), 499, 0, "cancelled"},
		{"chat missing", fmt.Errorf("get: %w", history.ErrNotFound), 404, 404, CodeChatNotFound},
		{"unknown", errors.New("boom"), 500, 500, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, status := FromError(tt.err)
			if status != tt.wantHTTP {
				t.Errorf("HTTP status = %d, want %d", status, tt.wantHTTP)
			}
			if resp.Error.Status != tt.wantStatus {
				t.Errorf("body status = %d, want %d", resp.Error.Status, tt.wantStatus)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}

	if _, status := FromError(providers.HTTPError(providers.OpenAI, http.StatusServiceUnavailable, "", "")); status != 503 {
		t.Errorf("upstream 503 rendered as %d", status)
	}
}
