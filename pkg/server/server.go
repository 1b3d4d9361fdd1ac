package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/handlers"
	"multimind-hq/relay/pkg/server/middleware"
	"multimind-hq/relay/pkg/telemetry/health"
	"multimind-hq/relay/pkg/telemetry/tracing"
)

// Deps are the components the HTTP surface exposes. Engine is required;
// a nil Chats leaves the /v1/chats routes unregistered and a nil Metrics
// leaves the metrics endpoint off.
type Deps struct {
	Engine      handlers.Engine
	Clients     proxy.ClientSource
	Credentials providers.CredentialStore
	Chats       *chat.Service
	Health      *health.Checker
	Tracer      *tracing.Tracer
	Logger      *slog.Logger

	Metrics     http.Handler
	MetricsPath string

	Version   string
	Commit    string
	BuildTime string
}

// Server is the relay's HTTP server.
type Server struct {
	config     *config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server

	mu        sync.RWMutex
	listener  net.Listener
	isRunning bool
}

// New creates a server. Call Start to begin serving.
func New(cfg *config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = health.New(0, nil)
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.isRunning = true
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.markStopped()
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits, up to the configured
// shutdown timeout, for in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	running := s.isRunning
	s.mu.RUnlock()
	if !running || srv == nil {
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	err := srv.Shutdown(ctx)
	s.markStopped()
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.chain(s.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	d := s.deps

	mux.HandleFunc("GET /health", d.Health.LivenessHandler())
	mux.HandleFunc("GET /ready", d.Health.ReadinessHandler())
	mux.HandleFunc("GET /version", health.VersionHandler(d.Version, d.Commit, d.BuildTime))

	proxyHandler := handlers.NewProxyHandler(d.Engine)
	mux.HandleFunc("GET /v1/status", proxyHandler.Status)
	mux.HandleFunc("POST /v1/proxy/{action}", proxyHandler.Control)

	providersHandler := handlers.NewProvidersHandler(d.Clients, d.Credentials)
	mux.HandleFunc("GET /v1/providers", providersHandler.List)
	mux.HandleFunc("GET /v1/providers/{provider}/models", providersHandler.Models)

	mux.Handle("POST /v1/chat", handlers.NewChatHandler(d.Engine, s.config.MaxBodyBytes))

	if d.Chats != nil {
		chats := handlers.NewChatsHandler(d.Chats, s.config.MaxBodyBytes)
		mux.HandleFunc("GET /v1/chats", chats.List)
		mux.HandleFunc("POST /v1/chats", chats.Create)
		mux.HandleFunc("DELETE /v1/chats", chats.DeleteAll)
		mux.HandleFunc("GET /v1/chats/{id}", chats.Get)
		mux.HandleFunc("PATCH /v1/chats/{id}", chats.Update)
		mux.HandleFunc("DELETE /v1/chats/{id}", chats.Delete)
		mux.HandleFunc("POST /v1/chats/{id}/messages", chats.Send)
		mux.HandleFunc("DELETE /v1/chats/{id}/messages", chats.Clear)
	}

	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, d.Metrics)
	}

	return mux
}

// chain applies the middleware, outermost first: recovery, tracing,
// request id, logging, CORS.
func (s *Server) chain(h http.Handler) http.Handler {
	h = middleware.CORSMiddleware(&s.config.CORS)(h)
	h = middleware.LoggingMiddleware(s.logger)(h)
	h = middleware.RequestIDMiddleware(h)
	if s.deps.Tracer != nil {
		h = tracing.HTTPMiddleware(s.deps.Tracer)(h)
	}
	return middleware.RecoveryMiddleware(h)
}
