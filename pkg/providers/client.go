package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the number of HTTP attempts per SendMessage.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base of the exponential backoff.
	DefaultRetryDelay = time.Second

	// MaxMessageLength is the longest message accepted, in characters.
	MaxMessageLength = 32000
)

const tracerName = "multimind-hq/relay/providers"

// ClientConfig tunes the shared client behaviour.
type ClientConfig struct {
	Timeout             time.Duration
	MaxAttempts         int
	RetryDelay          time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             DefaultTimeout,
		MaxAttempts:         DefaultMaxAttempts,
		RetryDelay:          DefaultRetryDelay,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	switch {
	case c.MaxAttempts == 0:
		c.MaxAttempts = def.MaxAttempts
	case c.MaxAttempts < 0:
		c.MaxAttempts = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = def.IdleConnTimeout
	}
	return c
}

// Observer receives one callback per HTTP attempt. The metrics package
// implements it.
type Observer interface {
	ObserveAttempt(provider Provider, outcome string, latency time.Duration)
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClock replaces the clock used for retry backoff.
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// WithObserver attaches a per-attempt observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// Client is the shared ChatClient implementation. Everything that differs
// between providers lives in its Adapter.
type Client struct {
	provider Provider
	info     ProviderInfo
	adapter  Adapter
	creds    CredentialStore
	config   ClientConfig
	http     *http.Client
	clock    clockwork.Clock
	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	nextID   uint64
}

// NewClient builds a client for p backed by adapter.
func NewClient(p Provider, adapter Adapter, creds CredentialStore, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	info, err := Lookup(p)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, fmt.Errorf("provider %q: adapter is required", p)
	}
	if creds == nil {
		return nil, fmt.Errorf("provider %q: credential store is required", p)
	}

	cfg = cfg.withDefaults()
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		provider: p,
		info:     info,
		adapter:  adapter,
		creds:    creds,
		config:   cfg,
		http:     &http.Client{Transport: transport, Timeout: cfg.Timeout},
		clock:    clockwork.NewRealClock(),
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default().With("component", "providers.client", "provider", string(p)),
		inflight: make(map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provider implements ChatClient.
func (c *Client) Provider() Provider {
	return c.provider
}

// Info returns the static provider info.
func (c *Client) Info() ProviderInfo {
	return c.info
}

// target resolves credentials and the gateway override for this call.
func (c *Client) target() Target {
	return Target{
		APIKey:  strings.TrimSpace(c.creds.Credentials()[c.provider]),
		BaseURL: strings.TrimSpace(c.creds.GatewayOverrides()[c.provider]),
	}
}

// validate runs every precondition that needs no I/O.
func (c *Client) validate(message, model string, target Target) error {
	if err := ValidateMessage(message, model); err != nil {
		return err
	}
	if c.info.RequiresKey {
		if err := ValidateAPIKey(c.provider, target.APIKey); err != nil {
			apiErr := AuthError(c.provider, err.Error())
			apiErr.Cause = err
			return apiErr
		}
	}
	return nil
}

// SendMessage implements ChatClient.
func (c *Client) SendMessage(ctx context.Context, message, model string) (*Reply, error) {
	target := c.target()
	if err := c.validate(message, model, target); err != nil {
		return nil, err
	}

	req, err := c.adapter.FormatRequest(target, message, model)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "provider.send_message",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", string(c.provider)),
			attribute.String("llm.model", model),
		),
	)
	defer span.End()

	body, attempts, err := c.do(ctx, req)
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if parser, ok := c.adapter.(ErrorParser); ok {
		if err := parser.ParseError(body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	completion, err := c.adapter.ParseResponse(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &Reply{Success: true, Result: *completion, Attempts: attempts}, nil
}

// FetchModels implements ChatClient.
func (c *Client) FetchModels(ctx context.Context) ([]Model, error) {
	lister, ok := c.adapter.(ModelLister)
	if !ok {
		return nil, NotImplementedError(c.provider, "Model listing")
	}

	target := c.target()
	if c.info.RequiresKey {
		if err := ValidateAPIKey(c.provider, target.APIKey); err != nil {
			apiErr := AuthError(c.provider, err.Error())
			apiErr.Cause = err
			return nil, apiErr
		}
	}

	req, err := lister.ModelsRequest(target)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return lister.ParseModels(body)
}

// StopResponse implements ChatClient.
func (c *Client) StopResponse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.inflight {
		cancel()
		delete(c.inflight, id)
	}
}

func (c *Client) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.inflight[id] = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		cancel()
	}
}

// do executes req with retry. It returns the 2xx body and the number of
// attempts made.
func (c *Client) do(ctx context.Context, req *HTTPRequest) ([]byte, int, error) {
	ctx, release := c.track(ctx)
	defer release()

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request",
				"attempt", attempt+1,
				"max_attempts", c.config.MaxAttempts,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, attempts, contextError(ctx)
			case <-c.clock.After(backoff):
			}
		}

		attempts++
		body, err := c.attempt(ctx, req, payload)
		if err == nil {
			return body, attempts, nil
		}
		lastErr = err

		if !IsRetryable(err) || ctx.Err() != nil {
			if ctx.Err() != nil {
				return nil, attempts, contextError(ctx)
			}
			return nil, attempts, err
		}

		c.logger.Warn("request failed, will retry",
			"attempt", attempts,
			"status", StatusOf(err),
			"error", err,
		)
	}

	return nil, attempts, lastErr
}

func (c *Client) attempt(ctx context.Context, req *HTTPRequest, payload []byte) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request to provider", "method", method, "url", req.URL)

	start := c.clock.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe("network_error", start)
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, NetworkError(c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe("network_error", start)
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, NetworkError(c.provider, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.observe("success", start)
		return body, nil
	}

	message, code := parseErrorBody(body)
	apiErr := HTTPError(c.provider, resp.StatusCode, code, message)
	c.observe(string(apiErr.Kind), start)
	return nil, apiErr
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveAttempt(c.provider, outcome, c.clock.Since(start))
	}
}

// contextError converts a finished context into the matching APIError.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError("Request timed out", err)
	}
	return CancelledError(err)
}
