package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/telemetry/health"
)

type stubEngine struct {
	mu      sync.Mutex
	running bool
}

func (e *stubEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	return nil
}

func (e *stubEngine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return nil
}

func (e *stubEngine) Restart(ctx context.Context) error { return e.Start() }

func (e *stubEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *stubEngine) Status() proxy.Status { return proxy.Status{Running: e.IsRunning()} }

func (e *stubEngine) HandleRequest(_ context.Context, message, _ string, _ providers.Provider, _ ...proxy.RequestOption) (*providers.Reply, error) {
	return &providers.Reply{Success: true, Result: providers.Completion{Response: "echo: " + message}}, nil
}

type noClients struct{}

func (noClients) Get(p providers.Provider) (providers.ChatClient, error) {
	return nil, providers.AuthError(p, "API key not configured")
}

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		CORS: config.CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST"},
		},
	}
}

func newTestServer(withChats bool) *Server {
	engine := &stubEngine{running: true}
	deps := Deps{
		Engine:      engine,
		Clients:     noClients{},
		Metrics:     http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "relay_up 1\n") }),
		MetricsPath: "/metrics",
		Version:     "test",
	}
	if withChats {
		deps.Chats = chat.NewService(history.NewMemoryStore(), engine)
	}
	return New(testConfig(), deps)
}

func TestHandler_Routes(t *testing.T) {
	h := newTestServer(true).Handler()

	tests := []struct {
		method, path, body string
		wantCode           int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/version", "", http.StatusOK},
		{http.MethodGet, "/v1/status", "", http.StatusOK},
		{http.MethodPost, "/v1/proxy/stop", "", http.StatusOK},
		{http.MethodGet, "/v1/providers", "", http.StatusOK},
		{http.MethodGet, "/v1/providers/openai/models", "", http.StatusOK},
		{http.MethodPost, "/v1/chat", `{"provider":"openai","message":"hi"}`, http.StatusOK},
		{http.MethodGet, "/v1/chats", "", http.StatusOK},
		{http.MethodPost, "/v1/chats", "", http.StatusCreated},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodDelete, "/v1/status", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, body))
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestHandler_ChatsDisabled(t *testing.T) {
	h := newTestServer(false).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chats", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := newTestServer(false).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHandler_ReadinessUsesChecker(t *testing.T) {
	checker := health.New(time.Second, nil)
	checker.Register("history", func(context.Context) error { return errors.New("database is closed") })

	srv := New(testConfig(), Deps{Engine: &stubEngine{}, Clients: noClients{}, Health: checker})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := newTestServer(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_StartTwice(t *testing.T) {
	srv := newTestServer(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() succeeded")
	}
}
