package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/events"
	"multimind-hq/relay/pkg/limits/ratelimit"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/telemetry/logging"
)

const tracerName = "multimind-hq/relay/proxy"

// ErrAlreadyRunning is returned by Start on a running engine.
var ErrAlreadyRunning = errors.New("proxy server is already running")

var nonRetryableStatus = map[int]bool{
	http.StatusBadRequest:   true,
	http.StatusUnauthorized: true,
	http.StatusForbidden:    true,
	http.StatusNotFound:     true,
}

// ClientSource resolves the client for a provider. providerfactory.Factory
// implements it.
type ClientSource interface {
	Get(p providers.Provider) (providers.ChatClient, error)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock for the engine and its breakers.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithBus publishes lifecycle events on bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithRecorder reports measurements to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTerminal sends the operator log to t instead of slog.
func WithTerminal(t Terminal) Option {
	return func(e *Engine) { e.terminal = t }
}

// WithBreakerConfig sets the thresholds of the per-provider breakers.
func WithBreakerConfig(cfg breaker.Config) Option {
	return func(e *Engine) { e.breakerConfig = cfg }
}

// WithLogger replaces the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine is the request engine. Create it with New; it starts stopped.
type Engine struct {
	config        Config
	clients       ClientSource
	clock         clockwork.Clock
	bus           *events.Bus
	recorder      Recorder
	terminal      Terminal
	logger        *slog.Logger
	tracer        trace.Tracer
	breakerConfig breaker.Config
	breakers      map[providers.Provider]*breaker.CircuitBreaker

	// lifecycle serializes Start and Stop so events are emitted in order.
	lifecycle sync.Mutex

	mu      sync.Mutex
	running bool
	sess    *session
	seq     uint64
}

// session holds the state of one running period. Stop replaces it, so
// workers finishing late only touch the session they started in.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc

	// abort is cancelled when Stop stops waiting for in-flight requests.
	abort       context.Context
	abortFlight context.CancelFunc

	started      time.Time
	requestCount int
	window       *ratelimit.RequestWindow
	slots        *ratelimit.SlotLimiter
	pending      map[string]time.Time
	queue        requestQueue
	holdUntil    time.Time
	rateLimited  bool

	wake     chan struct{}
	inflight sync.WaitGroup
	loops    sync.WaitGroup
}

// New creates a stopped engine.
func New(cfg Config, clients ClientSource, opts ...Option) *Engine {
	e := &Engine{
		config:        cfg.withDefaults(),
		clients:       clients,
		clock:         clockwork.NewRealClock(),
		bus:           events.New(),
		recorder:      nopRecorder{},
		logger:        slog.Default().With("component", "proxy"),
		tracer:        otel.Tracer(tracerName),
		breakerConfig: breaker.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breakers = make(map[providers.Provider]*breaker.CircuitBreaker)
	for _, p := range providers.AllProviders() {
		provider := p
		e.breakers[p] = breaker.New(string(p), e.breakerConfig,
			breaker.WithClock(e.clock),
			breaker.WithFailurePredicate(providers.IsUpstreamFailure),
			breaker.WithStateChangeHook(func(_ string, _, to breaker.State) {
				e.recorder.BreakerState(provider, to)
			}),
		)
	}

	e.sess = e.newSession()
	return e
}

func (e *Engine) newSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	abort, abortFlight := context.WithCancel(context.Background())
	return &session{
		ctx:         ctx,
		cancel:      cancel,
		abort:       abort,
		abortFlight: abortFlight,
		window:      ratelimit.NewRequestWindow(e.config.RateLimit, e.config.RateWindow, e.clock),
		slots:       ratelimit.NewSlotLimiter(e.config.MaxInFlight),
		pending:     make(map[string]time.Time),
		wake:        make(chan struct{}, 1),
	}
}

// Bus returns the lifecycle event bus.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// IsRunning reports whether the engine accepts requests.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start begins accepting requests.
func (e *Engine) Start() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.logf(LevelInfo, "Starting virtual proxy server...")

	s := e.newSession()
	s.started = e.clock.Now()
	e.sess = s
	e.running = true
	e.mu.Unlock()

	s.loops.Add(3)
	go e.dispatch(s)
	go e.monitor(s)
	go e.cleanup(s)
	for _, cb := range e.breakers {
		go cb.Run(s.ctx)
	}

	e.bus.Emit(context.Background(), events.EventStarted, nil)
	e.logf(LevelSuccess, "Virtual proxy server started successfully")
	return nil
}

// Stop rejects queued requests, waits up to StopTimeout (or until ctx is
// done) for in-flight requests, cancels whatever is still running and
// resets the statistics. Stopping a stopped engine is a no-op.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.logf(LevelInfo, "Stopping virtual proxy server...")

	s := e.sess
	e.running = false
	for _, r := range s.queue.drain() {
		e.settleLocked(r, outcome{err: providers.NewError(providers.KindNotRunning, "proxy server stopped")})
	}
	inFlight := s.slots.Current()
	e.mu.Unlock()

	s.cancel()
	s.loops.Wait()

	if inFlight > 0 {
		e.logf(LevelWarning, "Waiting for %d pending requests to complete...", inFlight)
		done := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-e.clock.After(e.config.StopTimeout):
			e.logf(LevelWarning, "Stop timeout elapsed with requests still in flight")
		case <-ctx.Done():
			e.logf(LevelWarning, "Stop cancelled with requests still in flight")
		}
	}
	s.abortFlight()

	e.mu.Lock()
	e.sess = e.newSession()
	e.mu.Unlock()
	e.recorder.QueueDepth(0, 0)
	e.recorder.WindowUsage(0, e.config.RateLimit)

	e.bus.Emit(ctx, events.EventStopped, nil)
	e.logf(LevelSuccess, "Virtual proxy server stopped successfully")
	return nil
}

// Restart stops and starts the engine.
func (e *Engine) Restart(ctx context.Context) error {
	if err := e.Stop(ctx); err != nil {
		return err
	}
	return e.Start()
}

// HandleRequest queues one chat request and blocks until it completes,
// fails, times out in the queue, or ctx is done.
func (e *Engine) HandleRequest(ctx context.Context, message, model string, provider providers.Provider, opts ...RequestOption) (*providers.Reply, error) {
	if !e.IsRunning() {
		return nil, providers.NewError(providers.KindNotRunning, "Proxy server is not running")
	}
	if err := providers.ValidateMessage(message, model); err != nil {
		return nil, err
	}
	if !provider.Valid() {
		return nil, providers.ValidationError(fmt.Sprintf("Unknown provider: %s", provider))
	}

	ro := requestOptions{priority: PriorityMedium}
	for _, opt := range opts {
		opt(&ro)
	}

	r := &queuedRequest{
		id:       uuid.NewString(),
		provider: provider,
		model:    model,
		message:  message,
		priority: ro.priority,
		index:    -1,
		result:   make(chan outcome, 1),
	}

	ctx = logging.WithRequestID(ctx, r.id)
	ctx = logging.WithProvider(ctx, string(provider))
	ctx = logging.WithModel(ctx, model)

	ctx, span := e.tracer.Start(ctx, "proxy.handle_request",
		trace.WithAttributes(
			attribute.String("request.id", r.id),
			attribute.String("llm.provider", string(provider)),
			attribute.String("llm.model", model),
			attribute.String("request.priority", ro.priority.String()),
		),
	)
	defer span.End()

	r.ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()

	s, err := e.enqueue(r)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reply, err := e.await(ctx, s, r)

	e.recorder.RequestFinished(provider, OutcomeLabel(err), e.clock.Since(r.enqueuedAt))
	span.SetAttributes(attribute.Int("request.retries", e.retriesOf(r)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return reply, nil
}

func (e *Engine) enqueue(r *queuedRequest) (*session, error) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, providers.NewError(providers.KindNotRunning, "Proxy server is not running")
	}
	s := e.sess
	if s.queue.Len() >= e.config.MaxQueueSize {
		e.mu.Unlock()
		return nil, providers.NewError(providers.KindQueueFull,
			fmt.Sprintf("Request queue is full (%d requests). Please try again later.", e.config.MaxQueueSize))
	}

	r.enqueuedAt = e.clock.Now()
	r.seq = e.nextSeqLocked()
	s.queue.push(r)
	queued, inFlight := s.queue.Len(), len(s.pending)
	e.mu.Unlock()

	e.logf(LevelInfo, "Request %s queued (%d in queue)", r.id, queued)
	e.recorder.QueueDepth(queued, inFlight)
	s.signal()
	return s, nil
}

// await blocks until r is settled. The queue timeout only applies while r
// is waiting in the queue.
func (e *Engine) await(ctx context.Context, s *session, r *queuedRequest) (*providers.Reply, error) {
	timer := e.clock.NewTimer(e.config.RequestTimeout)
	defer timer.Stop()

	timeout := timer.Chan()
	done := ctx.Done()
	for {
		select {
		case out := <-r.result:
			return out.reply, out.err
		case <-done:
			done = nil
			e.abandon(s, r, contextError(ctx.Err()))
		case <-timeout:
			timeout = nil
			e.expire(s, r)
		}
	}
}

// abandon settles r with err. A queued request is removed so it never runs;
// an executing one has its context cancelled.
func (e *Engine) abandon(s *session, r *queuedRequest, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.queue.remove(r) {
		e.logf(LevelWarning, "Request %s cancelled while queued", r.id)
	}
	e.settleLocked(r, outcome{err: err})
}

func (e *Engine) expire(s *session, r *queuedRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.queue.remove(r) {
		return
	}
	e.logf(LevelWarning, "Request %s timed out in queue", r.id)
	e.settleLocked(r, outcome{err: providers.TimeoutError("Request timed out", nil)})
}

// settleLocked delivers the single outcome of r. Later calls are ignored.
func (e *Engine) settleLocked(r *queuedRequest, out outcome) bool {
	if r.settled {
		return false
	}
	r.settled = true
	r.result <- out
	r.cancel()
	return true
}

func (e *Engine) retriesOf(r *queuedRequest) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.retries
}

func (e *Engine) nextSeqLocked() uint64 {
	e.seq++
	return e.seq
}

func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch is the only goroutine that dequeues.
func (e *Engine) dispatch(s *session) {
	defer s.loops.Done()

	for {
		r, wait := e.next(s)
		if r == nil {
			if !e.sleep(s, wait) {
				return
			}
			continue
		}

		e.launch(s, r)

		if e.config.DrainInterval > 0 {
			select {
			case <-e.clock.After(e.config.DrainInterval):
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// next pops the request to execute, or returns how long to wait before
// looking again. A zero wait means until something changes.
func (e *Engine) next(s *session) (*queuedRequest, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.queue.Len() == 0 {
		return nil, 0
	}

	now := e.clock.Now()
	if now.Before(s.holdUntil) {
		return nil, s.holdUntil.Sub(now)
	}

	if s.window.Full() {
		if !s.rateLimited {
			s.rateLimited = true
			e.logf(LevelWarning, "Rate limit reached, waiting...")
		}
		return nil, s.window.ResetIn()
	}
	s.rateLimited = false

	if !s.slots.Acquire() {
		return nil, 0
	}

	r := s.queue.pop()
	s.window.Record()
	s.requestCount++
	s.pending[r.id] = now
	s.inflight.Add(1)
	return r, 0
}

func (e *Engine) sleep(s *session, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case <-s.wake:
			return true
		case <-s.ctx.Done():
			return false
		}
	}

	timer := e.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-s.wake:
	case <-timer.Chan():
	case <-s.ctx.Done():
		return false
	}
	return true
}

func (e *Engine) launch(s *session, r *queuedRequest) {
	e.recorder.RequestDispatched(r.provider)
	e.recorder.WindowUsage(s.window.Count(), e.config.RateLimit)

	go func() {
		defer s.inflight.Done()
		stop := context.AfterFunc(s.abort, r.cancel)
		defer stop()
		reply, err := e.execute(r)
		e.complete(s, r, reply, err)
	}()
}

// execute runs one attempt of r through the provider breaker.
func (e *Engine) execute(r *queuedRequest) (reply *providers.Reply, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("request %s panicked: %v", r.id, rec)
		}
	}()

	if err := r.ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	client, err := e.clients.Get(r.provider)
	if err != nil {
		apiErr := providers.ValidationError(err.Error())
		apiErr.Provider = r.provider
		apiErr.Cause = err
		return nil, apiErr
	}

	cb := e.breakers[r.provider]
	reply, err = breaker.Do(r.ctx, cb, func(ctx context.Context) (*providers.Reply, error) {
		return client.SendMessage(ctx, r.message, r.model)
	})
	return reply, e.classify(r, err)
}

func (e *Engine) classify(r *queuedRequest, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *providers.APIError
	switch {
	case errors.Is(err, breaker.ErrOpen), errors.Is(err, breaker.ErrHalfOpenLimit):
		open := providers.NewError(providers.KindCircuitOpen,
			fmt.Sprintf("Circuit breaker is open for %s", r.provider))
		open.Provider = r.provider
		open.Cause = err
		return open
	case errors.Is(err, breaker.ErrTimeout):
		return providers.TimeoutError(fmt.Sprintf("Request to %s timed out", r.provider), err)
	case errors.As(err, &apiErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return contextError(err)
	default:
		return err
	}
}

// complete records the result of one execution and either settles r or
// re-queues it for a retry.
func (e *Engine) complete(s *session, r *queuedRequest, reply *providers.Reply, err error) {
	e.mu.Lock()
	delete(s.pending, r.id)
	s.slots.Release()

	abandoned := r.settled
	current := e.running && e.sess == s
	retried := false

	switch {
	case abandoned:
	case err == nil:
		e.settleLocked(r, outcome{reply: reply})
	case current && shouldRetry(err) && r.retries < e.config.MaxRetries:
		r.retries++
		r.priority = PriorityHigh
		r.seq = e.nextSeqLocked()
		s.queue.push(r)
		hold := e.clock.Now().Add(e.config.RetryDelay * time.Duration(r.retries))
		if hold.After(s.holdUntil) {
			s.holdUntil = hold
		}
		retried = true
	default:
		e.settleLocked(r, outcome{err: err})
	}

	retries := r.retries
	queued, inFlight := s.queue.Len(), len(s.pending)
	e.mu.Unlock()

	switch {
	case abandoned:
	case err == nil:
		e.logf(LevelSuccess, "Request %s completed successfully", r.id)
	case retried:
		e.recorder.RequestRetried(r.provider)
		e.logf(LevelWarning, "Retrying request %s (attempt %d/%d)", r.id, retries, e.config.MaxRetries)
	default:
		e.logf(LevelError, "Request %s failed: %v", r.id, err)
	}

	e.recorder.QueueDepth(queued, inFlight)
	s.signal()
}

// shouldRetry reports whether the engine may re-queue after err.
func shouldRetry(err error) bool {
	if nonRetryableStatus[providers.StatusOf(err)] {
		return false
	}
	if errors.Is(err, providers.ErrCancelled) ||
		errors.Is(err, providers.ErrCircuitOpen) ||
		errors.Is(err, providers.ErrTimeout) {
		return false
	}
	return true
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.TimeoutError("Request timed out", err)
	}
	return providers.CancelledError(err)
}
