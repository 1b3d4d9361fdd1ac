package natsbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server/api"
	"multimind-hq/relay/pkg/telemetry/logging"
	"multimind-hq/relay/pkg/telemetry/tracing"
)

const tracerName = "multimind-hq/relay/natsbridge"

// RequestIDHeader carries the caller's request id, mirroring the HTTP header.
const RequestIDHeader = "X-Request-ID"

// ErrNotConnected is returned by Ping before Start or after Stop.
var ErrNotConnected = errors.New("nats: not connected")

// Sender is the engine entry point the bridge forwards to.
type Sender interface {
	HandleRequest(ctx context.Context, message, model string, provider providers.Provider, opts ...proxy.RequestOption) (*providers.Reply, error)
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithConnectOptions appends nats.Connect options, e.g. credentials.
func WithConnectOptions(opts ...nats.Option) Option {
	return func(b *Bridge) { b.connectOpts = append(b.connectOpts, opts...) }
}

// Bridge answers chat requests published on a NATS subject. Relay
// instances share a queue group so each request is handled once.
type Bridge struct {
	config      *config.NATSConfig
	sender      Sender
	logger      *slog.Logger
	tracer      trace.Tracer
	connectOpts []nats.Option

	mu       sync.Mutex
	conn     *nats.Conn
	sub      *nats.Subscription
	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a bridge. It does not connect until Start.
func New(cfg *config.NATSConfig, sender Sender, opts ...Option) *Bridge {
	b := &Bridge{
		config: cfg,
		sender: sender,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "natsbridge")
	return b
}

// Start connects to NATS and subscribes to the chat subject. Requests are
// served in their own goroutines until Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return errors.New("nats bridge already started")
	}

	opts := append([]nats.Option{
		nats.Name("multimind-relay"),
		nats.MaxReconnects(b.config.MaxReconnects),
		nats.ReconnectWait(b.config.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			b.logger.Info("nats connection closed")
		}),
	}, b.connectOpts...)

	conn, err := nats.Connect(b.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b.baseCtx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	sub, err := conn.QueueSubscribe(b.config.Subject, b.config.QueueGroup, b.dispatch)
	if err != nil {
		b.cancel()
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.config.Subject, err)
	}

	b.conn = conn
	b.sub = sub
	b.logger.Info("nats bridge started",
		"url", conn.ConnectedUrl(),
		"subject", b.config.Subject,
		"queue_group", b.config.QueueGroup,
	)
	return nil
}

// Stop drains the subscription, waits for in-flight requests up to ctx's
// deadline and closes the connection.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	conn, sub, cancel := b.conn, b.sub, b.cancel
	b.conn, b.sub = nil, nil
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	defer conn.Close()

	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.logger.Warn("failed to unsubscribe", "error", err)
	}

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		b.logger.Info("nats bridge stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("nats bridge stop: %w", ctx.Err())
	}
}

// Ping reports whether the connection is up. It backs the readiness check.
func (b *Bridge) Ping(context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if !conn.IsConnected() {
		return fmt.Errorf("nats: connection %s", conn.Status())
	}
	return nil
}

func (b *Bridge) dispatch(msg *nats.Msg) {
	if msg.Reply == "" {
		b.logger.Warn("dropping chat request without reply subject", "subject", msg.Subject)
		return
	}

	b.mu.Lock()
	ctx := b.baseCtx
	b.mu.Unlock()

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.serve(ctx, msg)
	}()
}

func (b *Bridge) serve(ctx context.Context, msg *nats.Msg) {
	ctx = tracing.Extract(ctx, msg.Header)
	requestID := msg.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, requestID)

	ctx, span := b.tracer.Start(ctx, "nats.chat",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject),
		),
	)
	defer span.End()

	data, failed := b.Handle(ctx, msg.Data)
	if failed {
		span.SetAttributes(attribute.Bool("error", true))
	}

	resp := nats.NewMsg(msg.Reply)
	resp.Data = data
	resp.Header.Set(RequestIDHeader, requestID)
	tracing.Inject(ctx, resp.Header)
	if err := msg.RespondMsg(resp); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish reply", "reply_subject", msg.Reply, "error", err)
	}
}

// Handle runs one encoded api.ChatRequest through the engine and returns
// the encoded reply, or an api.ErrorResponse with failed set.
func (b *Bridge) Handle(ctx context.Context, data []byte) (reply []byte, failed bool) {
	start := time.Now()

	var req api.ChatRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return encode(api.NewErrorResponse("Invalid JSON: "+err.Error(), 400, api.CodeInvalidJSON)), true
	}

	p, model, priority, err := req.Validate()
	if err != nil {
		return b.fail(ctx, err), true
	}

	ctx = logging.WithProvider(ctx, string(p))
	ctx = logging.WithModel(ctx, model)

	out, err := b.sender.HandleRequest(ctx, req.Message, model, p, proxy.WithPriority(priority))
	if err != nil {
		return b.fail(ctx, err), true
	}

	b.logger.InfoContext(ctx, "nats chat request completed",
		"attempts", out.Attempts,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return encode(out), false
}

func (b *Bridge) fail(ctx context.Context, err error) []byte {
	resp, status := api.FromError(err)
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	b.logger.Log(ctx, level, "nats chat request failed", "status", status, "code", resp.Error.Code, "error", err)
	return encode(resp)
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":{"message":"failed to encode reply","status":500,"code":"internal_error"}}`)
	}
	return data
}
