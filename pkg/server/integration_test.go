package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"multimind-hq/relay/internal/providertest"
	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/credentials"
	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providerfactory"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/api"
	"multimind-hq/relay/pkg/server/handlers"
)

const testOpenAIKey = "sk-0123456789abcdefghijklmnopqrstuvwxyzABCD"

// relayStack is the full relay wired against a fake upstream.
type relayStack struct {
	upstream *providertest.Upstream
	engine   *proxy.Engine
	http     *httptest.Server
}

func newRelayStack(t *testing.T) *relayStack {
	t.Helper()

	up := providertest.NewUpstream()
	t.Cleanup(up.Close)

	creds := credentials.NewStaticStore(map[string]config.ProviderConfig{
		"openai":    {APIKey: testOpenAIKey, GatewayURL: up.URL()},
		"anthropic": {APIKey: "sk-ant-test", GatewayURL: up.URL()},
	})
	factory := providerfactory.New(creds, providers.ClientConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	})
	t.Cleanup(func() { factory.Close() })

	cfg := proxy.DefaultConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.DrainInterval = 5 * time.Millisecond
	engine := proxy.New(cfg, factory)
	if err := engine.Start(); err != nil {
		t.Fatalf("engine.Start() error = %v", err)
	}
	t.Cleanup(func() { engine.Stop(context.Background()) })

	store, err := history.NewSQLiteStore(history.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := New(testConfig(), Deps{
		Engine:      engine,
		Clients:     factory,
		Credentials: creds,
		Chats:       chat.NewService(store, engine),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &relayStack{upstream: up, engine: engine, http: ts}
}

func (s *relayStack) call(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, s.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestIntegration_ChatThroughEngine(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/chat/completions", providertest.OpenAIReply("Hello from upstream"))

	var reply providers.Reply
	code := s.call(t, http.MethodPost, "/v1/chat", `{"provider":"openai","model":"gpt-4","message":"Hello"}`, &reply)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !reply.Success || reply.Result.Response != "Hello from upstream" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Result.Usage == nil || reply.Result.Usage.TotalTokens != 30 {
		t.Errorf("usage = %+v", reply.Result.Usage)
	}

	reqs := s.upstream.Requests()
	if len(reqs) != 1 {
		t.Fatalf("upstream requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Bearer "+testOpenAIKey {
		t.Errorf("Authorization = %q", got)
	}
	var sent struct {
		Model    string                  `json:"model"`
		Messages []providers.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(reqs[0].Body, &sent); err != nil {
		t.Fatalf("upstream body: %v", err)
	}
	if sent.Model != "gpt-4" || len(sent.Messages) == 0 || sent.Messages[len(sent.Messages)-1].Content != "Hello" {
		t.Errorf("upstream body = %s", reqs[0].Body)
	}

	if got := s.engine.Status().RequestCount; got != 1 {
		t.Errorf("RequestCount = %d, want 1", got)
	}
}

func TestIntegration_TransientFailureRetried(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/chat/completions",
		providertest.ErrorReply(http.StatusServiceUnavailable, "overloaded"),
		providertest.OpenAIReply("recovered"),
	)

	var reply providers.Reply
	if code := s.call(t, http.MethodPost, "/v1/chat", `{"provider":"openai","message":"Hello"}`, &reply); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if reply.Result.Response != "recovered" {
		t.Errorf("response = %q", reply.Result.Response)
	}
	if n := s.upstream.Count("/chat/completions"); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestIntegration_UpstreamAuthFailure(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/v1/messages", providertest.ErrorReply(http.StatusUnauthorized, "invalid x-api-key"))

	var resp api.ErrorResponse
	code := s.call(t, http.MethodPost, "/v1/chat", `{"provider":"anthropic","message":"Hello"}`, &resp)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if resp.Error.Status != http.StatusUnauthorized || resp.Error.Message == "" {
		t.Errorf("error = %+v", resp.Error)
	}
	if n := s.upstream.Count("/v1/messages"); n != 1 {
		t.Errorf("auth failures must not be retried: upstream calls = %d", n)
	}
}

func TestIntegration_ChatHistory(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/chat/completions", providertest.OpenAIReply("first answer"), providertest.OpenAIReply("second answer"))

	var c history.Chat
	if code := s.call(t, http.MethodPost, "/v1/chats", `{"provider":"openai"}`, &c); code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}

	for _, text := range []string{"one", "two"} {
		var msg history.Message
		if code := s.call(t, http.MethodPost, "/v1/chats/"+c.ID+"/messages", `{"message":"`+text+`"}`, &msg); code != http.StatusOK {
			t.Fatalf("send %q status = %d", text, code)
		}
		if msg.Role != history.RoleAssistant {
			t.Errorf("send returned role %q", msg.Role)
		}
	}

	var got history.Chat
	if code := s.call(t, http.MethodGet, "/v1/chats/"+c.ID, "", &got); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	want := []string{"one", "first answer", "two", "second answer"}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %d, want %d", len(got.Messages), len(want))
	}
	for i, m := range got.Messages {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestIntegration_FailedSendLeavesChatUnchanged(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/chat/completions", providertest.ErrorReply(http.StatusBadRequest, "context length exceeded"))

	var c history.Chat
	s.call(t, http.MethodPost, "/v1/chats", `{"provider":"openai"}`, &c)

	var resp api.ErrorResponse
	if code := s.call(t, http.MethodPost, "/v1/chats/"+c.ID+"/messages", `{"message":"hi"}`, &resp); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if resp.Error.Guidance == "" {
		t.Error("failure carries no guidance")
	}

	var got history.Chat
	s.call(t, http.MethodGet, "/v1/chats/"+c.ID, "", &got)
	if len(got.Messages) != 0 {
		t.Errorf("failed send stored %d messages", len(got.Messages))
	}
}

func TestIntegration_RemoteModels(t *testing.T) {
	s := newRelayStack(t)
	s.upstream.Script("/models", providertest.ModelsReply("gpt-4", "gpt-3.5-turbo", "whisper-1"))

	var resp handlers.ModelsResponse
	if code := s.call(t, http.MethodGet, "/v1/providers/openai/models?remote=1", "", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Source != "remote" {
		t.Errorf("source = %q, want remote", resp.Source)
	}
	if len(resp.Models) != 2 {
		t.Errorf("models = %+v, want the two gpt models", resp.Models)
	}
}
