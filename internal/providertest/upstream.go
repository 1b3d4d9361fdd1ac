// Package providertest provides a scripted fake LLM provider for tests.
//
// An Upstream answers each path from a script of responses. Responses are
// consumed in order and the last one repeats, so a test can describe
// "fail twice, then succeed" without counting requests itself:
//
//	up := providertest.NewUpstream()
//	defer up.Close()
//	up.Script("/chat/completions",
//	    providertest.ErrorReply(http.StatusServiceUnavailable, "overloaded"),
//	    providertest.OpenAIReply("Hi!"),
//	)
//
// Point a provider at it with a gateway override of up.URL().
package providertest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response is one scripted answer.
type Response struct {
	Status  int
	Body    any // string, []byte or a value encoded as JSON
	Delay   time.Duration
	Headers map[string]string
}

// Request is what the upstream saw.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Upstream is a fake provider API served by httptest.
type Upstream struct {
	server *httptest.Server

	mu       sync.Mutex
	scripts  map[string][]Response
	requests []Request
}

// NewUpstream starts an upstream with no scripts. Unscripted paths
// answer 404.
func NewUpstream() *Upstream {
	u := &Upstream{scripts: make(map[string][]Response)}
	u.server = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

// URL returns the base URL to use as a gateway override.
func (u *Upstream) URL() string {
	return u.server.URL
}

// Close shuts the server down.
func (u *Upstream) Close() {
	u.server.Close()
}

// Script replaces the responses for path.
func (u *Upstream) Script(path string, responses ...Response) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.scripts[path] = append([]Response(nil), responses...)
}

// Requests returns every request received so far.
func (u *Upstream) Requests() []Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Request(nil), u.requests...)
}

// Count returns how many requests hit path.
func (u *Upstream) Count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, r := range u.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (u *Upstream) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	u.mu.Lock()
	u.requests = append(u.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	script, ok := u.scripts[r.URL.Path]
	var resp Response
	if ok && len(script) > 0 {
		resp = script[0]
		if len(script) > 1 {
			u.scripts[r.URL.Path] = script[1:]
		}
	}
	u.mu.Unlock()

	if !ok || len(script) == 0 {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}

	switch v := resp.Body.(type) {
	case nil:
		w.WriteHeader(resp.Status)
	case string:
		w.WriteHeader(resp.Status)
		_, _ = io.WriteString(w, v)
	case []byte:
		w.WriteHeader(resp.Status)
		_, _ = w.Write(v)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

// OpenAIReply is a chat completion in the OpenAI shape, which OpenRouter
// and Cloudflare gateways share.
func OpenAIReply(content string) Response {
	return Response{Body: map[string]any{
		"id":     "chatcmpl-123",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}}
}

// AnthropicReply is a Messages API response.
func AnthropicReply(content string) Response {
	return Response{Body: map[string]any{
		"id":          "msg_123",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": content}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	}}
}

// GoogleReply is a generateContent response.
func GoogleReply(content string) Response {
	return Response{Body: map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": content}}},
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30},
	}}
}

// ModelsReply is an OpenAI-style model listing.
func ModelsReply(ids ...string) Response {
	data := make([]map[string]any, len(ids))
	for i, id := range ids {
		data[i] = map[string]any{"id": id, "object": "model"}
	}
	return Response{Body: map[string]any{"object": "list", "data": data}}
}

// ErrorReply is a provider failure with the common {"error": {...}} body.
func ErrorReply(status int, message string) Response {
	return Response{
		Status: status,
		Body: map[string]any{"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		}},
	}
}

// RateLimited is a 429 with a Retry-After header.
func RateLimited(retryAfter int) Response {
	r := ErrorReply(http.StatusTooManyRequests, "Rate limit exceeded")
	r.Headers = map[string]string{"Retry-After": fmt.Sprint(retryAfter)}
	return r
}
