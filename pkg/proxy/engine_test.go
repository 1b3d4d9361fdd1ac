package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/events"
	"multimind-hq/relay/pkg/providerfactory"
	"multimind-hq/relay/pkg/providers"
)

type stubClient struct {
	handler func(ctx context.Context, message string, call int) (*providers.Reply, error)

	mu    sync.Mutex
	calls []string
}

func (c *stubClient) Provider() providers.Provider { return providers.OpenAI }

func (c *stubClient) SendMessage(ctx context.Context, message, model string) (*providers.Reply, error) {
	c.mu.Lock()
	c.calls = append(c.calls, message)
	n := len(c.calls)
	c.mu.Unlock()

	if c.handler == nil {
		return okReply("ok"), nil
	}
	return c.handler(ctx, message, n)
}

func (c *stubClient) FetchModels(context.Context) ([]providers.Model, error) {
	return nil, providers.NotImplementedError(providers.OpenAI, "Model listing")
}

func (c *stubClient) StopResponse() {}

func (c *stubClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type stubSource struct {
	client providers.ChatClient
}

func (s stubSource) Get(providers.Provider) (providers.ChatClient, error) {
	return s.client, nil
}

type mapStore map[providers.Provider]string

func (m mapStore) Credentials() map[providers.Provider]string { return m }

func (m mapStore) GatewayOverrides() map[providers.Provider]string { return nil }

type gatewayStore struct {
	key, url string
}

func (s gatewayStore) Credentials() map[providers.Provider]string {
	return map[providers.Provider]string{providers.OpenAI: s.key}
}

func (s gatewayStore) GatewayOverrides() map[providers.Provider]string {
	return map[providers.Provider]string{providers.OpenAI: s.url}
}

func okReply(text string) *providers.Reply {
	return &providers.Reply{Success: true, Result: providers.Completion{Response: text}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DrainInterval = -1
	cfg.RetryDelay = 5 * time.Millisecond
	return cfg
}

func startEngine(t *testing.T, cfg Config, client providers.ChatClient, opts ...Option) *Engine {
	t.Helper()
	e := New(cfg, stubSource{client: client}, opts...)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// blockingClient blocks the first call for message "X" until release is closed.
func blockingClient(release <-chan struct{}) *stubClient {
	return &stubClient{handler: func(ctx context.Context, message string, call int) (*providers.Reply, error) {
		if message == "X" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, providers.CancelledError(ctx.Err())
			}
		}
		return okReply("reply to " + message), nil
	}}
}

type result struct {
	reply *providers.Reply
	err   error
}

func submit(e *Engine, ctx context.Context, message string, opts ...RequestOption) <-chan result {
	ch := make(chan result, 1)
	go func() {
		reply, err := e.HandleRequest(ctx, message, "gpt-4", providers.OpenAI, opts...)
		ch <- result{reply, err}
	}()
	return ch
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestEngine_StartStopEvents(t *testing.T) {
	bus := events.New()
	var started, stopped int32
	bus.Subscribe(events.EventStarted, func(context.Context, any) { atomic.AddInt32(&started, 1) })
	bus.Subscribe(events.EventStopped, func(context.Context, any) { atomic.AddInt32(&stopped, 1) })

	e := New(testConfig(), stubSource{client: &stubClient{}}, WithBus(bus))

	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if !e.IsRunning() || !e.Status().Running {
		t.Error("expected engine to report running")
	}

	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if err := e.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	_ = e.Stop(context.Background())

	if started != 2 || stopped != 2 {
		t.Errorf("started=%d stopped=%d, want 2 and 2", started, stopped)
	}
}

func TestEngine_NotRunning(t *testing.T) {
	client := &stubClient{}
	e := New(testConfig(), stubSource{client: client})

	_, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
	if !errors.Is(err, providers.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if providers.StatusOf(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", providers.StatusOf(err))
	}
	if len(client.Calls()) != 0 {
		t.Error("stopped engine must not call the provider")
	}
}

func TestEngine_StopRejectsQueued(t *testing.T) {
	release := make(chan struct{})
	client := blockingClient(release)
	cfg := testConfig()
	cfg.MaxInFlight = 1
	e := startEngine(t, cfg, client)

	x := submit(e, context.Background(), "X")
	waitFor(t, "X to execute", func() bool { return len(client.Calls()) == 1 })

	b := submit(e, context.Background(), "B")
	waitFor(t, "B to queue", func() bool { return e.Status().QueuedRequests == 1 })

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop(context.Background()) }()

	res := <-b
	if !errors.Is(res.err, providers.ErrNotRunning) || !strings.Contains(res.err.Error(), "proxy server stopped") {
		t.Errorf("queued request got %v, want proxy server stopped", res.err)
	}

	close(release)
	if res := <-x; res.err != nil {
		t.Errorf("in-flight request should finish, got %v", res.err)
	}
	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	st := e.Status()
	if st.RequestCount != 0 || st.QueuedRequests != 0 || st.PendingRequests != 0 {
		t.Errorf("expected stats reset after stop, got %+v", st)
	}
}

func TestEngine_StopCancelsInFlightAfterTimeout(t *testing.T) {
	client := &stubClient{handler: func(ctx context.Context, _ string, _ int) (*providers.Reply, error) {
		<-ctx.Done()
		return nil, providers.CancelledError(ctx.Err())
	}}
	cfg := testConfig()
	cfg.StopTimeout = 50 * time.Millisecond
	e := startEngine(t, cfg, client)

	res := submit(e, context.Background(), "Hello")
	waitFor(t, "request to execute", func() bool { return len(client.Calls()) == 1 })

	began := time.Now()
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case r := <-res:
		if !errors.Is(r.err, providers.ErrCancelled) {
			t.Errorf("in-flight request got %v, want ErrCancelled", r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight request kept running after Stop")
	}
	if elapsed := time.Since(began); elapsed > 500*time.Millisecond {
		t.Errorf("Stop took %v", elapsed)
	}
}

func TestEngine_StopContextCancelsInFlight(t *testing.T) {
	client := &stubClient{handler: func(ctx context.Context, _ string, _ int) (*providers.Reply, error) {
		<-ctx.Done()
		return nil, providers.CancelledError(ctx.Err())
	}}
	e := startEngine(t, testConfig(), client)

	res := submit(e, context.Background(), "Hello")
	waitFor(t, "request to execute", func() bool { return len(client.Calls()) == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case r := <-res:
		if !errors.Is(r.err, providers.ErrCancelled) {
			t.Errorf("in-flight request got %v, want ErrCancelled", r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight request kept running after Stop")
	}
}

// ============================================================================
// Admission
// ============================================================================

func TestEngine_ValidationPerformsNoCalls(t *testing.T) {
	client := &stubClient{}
	e := startEngine(t, testConfig(), client)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := e.HandleRequest(context.Background(), msg, "gpt-4", providers.OpenAI)
		if !errors.Is(err, providers.ErrValidation) {
			t.Errorf("HandleRequest(%q) = %v, want validation error", msg, err)
		}
	}

	if _, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.Provider("azure")); !errors.Is(err, providers.ErrValidation) {
		t.Errorf("unknown provider = %v, want validation error", err)
	}

	if n := len(client.Calls()); n != 0 {
		t.Errorf("expected zero provider calls, got %d", n)
	}
	if e.Status().RequestCount != 0 {
		t.Error("rejected requests must not count")
	}
}

func TestEngine_QueueFull(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := blockingClient(release)

	cfg := testConfig()
	cfg.MaxInFlight = 1
	e := startEngine(t, cfg, client)

	submit(e, context.Background(), "X")
	waitFor(t, "X to execute", func() bool { return len(client.Calls()) == 1 })

	results := make([]<-chan result, 0, cfg.MaxQueueSize)
	for i := 0; i < cfg.MaxQueueSize; i++ {
		results = append(results, submit(e, context.Background(), "queued"))
	}
	waitFor(t, "queue to fill", func() bool { return e.Status().QueuedRequests == cfg.MaxQueueSize })

	_, err := e.HandleRequest(context.Background(), "overflow", "gpt-4", providers.OpenAI)
	if !errors.Is(err, providers.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if providers.StatusOf(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", providers.StatusOf(err))
	}

	st := e.Status()
	if st.QueuedRequests != cfg.MaxQueueSize {
		t.Errorf("queue length %d exceeds capacity", st.QueuedRequests)
	}
	if st.QueueCapacity.Percentage != 100 {
		t.Errorf("capacity percentage = %d, want 100", st.QueueCapacity.Percentage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = e.Stop(ctx)

	for _, ch := range results {
		if res := <-ch; !errors.Is(res.err, providers.ErrNotRunning) {
			t.Fatalf("queued request got %v", res.err)
		}
	}
}

// ============================================================================
// Execution
// ============================================================================

func TestEngine_EndToEndOpenAI(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"stubbed text"}}]}`))
	}))
	defer upstream.Close()

	creds := gatewayStore{key: "sk-0123456789abcdefghijklmnopqrstuvwxyzABCD", url: upstream.URL}
	factory := providerfactory.New(creds, providers.ClientConfig{Timeout: 2 * time.Second})
	defer factory.Close()

	e := New(testConfig(), factory)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop(context.Background())

	reply, err := e.HandleRequest(context.Background(), "Hello", "gpt-3.5-turbo", providers.OpenAI)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if !reply.Success || reply.Result.Response != "stubbed text" {
		t.Errorf("unexpected reply %+v", reply)
	}
	if got := e.Status().RequestCount; got != 1 {
		t.Errorf("RequestCount = %d, want 1", got)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one upstream call, got %d", hits)
	}
}

func TestEngine_MissingCredential(t *testing.T) {
	factory := providerfactory.New(mapStore{}, providers.DefaultClientConfig())
	e := New(testConfig(), factory)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop(context.Background())

	_, err := e.HandleRequest(context.Background(), "Hello", "claude-2.1", providers.Anthropic)
	if !errors.Is(err, providers.ErrAuth) || providers.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected AuthError 401, got %v", err)
	}
	if got := e.Status().RequestCount; got != 1 {
		t.Errorf("auth failures are not retried: RequestCount = %d", got)
	}
}

func TestEngine_RetriesServerErrors(t *testing.T) {
	client := &stubClient{handler: func(context.Context, string, int) (*providers.Reply, error) {
		return nil, providers.HTTPError(providers.OpenAI, http.StatusServiceUnavailable, "", "")
	}}
	cfg := testConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	e := startEngine(t, cfg, client)

	start := time.Now()
	_, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
	elapsed := time.Since(start)

	if !errors.Is(err, providers.ErrServer) || providers.StatusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected the last 503, got %v", err)
	}
	if n := len(client.Calls()); n != 1+cfg.MaxRetries {
		t.Errorf("expected %d executions, got %d", 1+cfg.MaxRetries, n)
	}
	// holds of 10ms, 20ms and 30ms
	if elapsed < 60*time.Millisecond {
		t.Errorf("retries finished too fast: %v", elapsed)
	}
	if got := e.Status().RequestCount; got != 4 {
		t.Errorf("RequestCount = %d, want every attempt counted", got)
	}
}

func TestEngine_NegativeMaxRetriesDisablesRetry(t *testing.T) {
	client := &stubClient{handler: func(context.Context, string, int) (*providers.Reply, error) {
		return nil, providers.HTTPError(providers.OpenAI, http.StatusServiceUnavailable, "", "")
	}}
	cfg := testConfig()
	cfg.MaxRetries = -1
	e := startEngine(t, cfg, client)

	_, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
	if !errors.Is(err, providers.ErrServer) {
		t.Fatalf("expected the 503, got %v", err)
	}
	if n := len(client.Calls()); n != 1 {
		t.Errorf("expected a single execution, got %d", n)
	}
}

func TestEngine_InFlightUnboundedByDefault(t *testing.T) {
	release := make(chan struct{})
	client := &stubClient{handler: func(ctx context.Context, message string, _ int) (*providers.Reply, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, providers.CancelledError(ctx.Err())
		}
		return okReply("reply to " + message), nil
	}}
	e := startEngine(t, testConfig(), client)

	const n = 8
	results := make([]<-chan result, n)
	for i := range results {
		results[i] = submit(e, context.Background(), fmt.Sprintf("m%d", i))
	}
	waitFor(t, "all requests to execute at once", func() bool { return len(client.Calls()) == n })
	close(release)

	for _, res := range results {
		if r := <-res; r.err != nil {
			t.Errorf("unexpected error %v", r.err)
		}
	}
}

func TestEngine_RetryThenSuccess(t *testing.T) {
	client := &stubClient{handler: func(_ context.Context, _ string, call int) (*providers.Reply, error) {
		if call <= 2 {
			return nil, providers.HTTPError(providers.OpenAI, http.StatusInternalServerError, "", "")
		}
		return okReply("third time"), nil
	}}
	e := startEngine(t, testConfig(), client)

	reply, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if reply.Result.Response != "third time" {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestEngine_DoesNotRetryClientErrors(t *testing.T) {
	statuses := []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}
	for _, status := range statuses {
		t.Run(http.StatusText(status), func(t *testing.T) {
			client := &stubClient{handler: func(context.Context, string, int) (*providers.Reply, error) {
				return nil, providers.HTTPError(providers.OpenAI, status, "", "")
			}}
			e := startEngine(t, testConfig(), client)

			_, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
			if providers.StatusOf(err) != status {
				t.Errorf("status = %d, want %d", providers.StatusOf(err), status)
			}
			if n := len(client.Calls()); n != 1 {
				t.Errorf("expected a single execution, got %d", n)
			}
		})
	}
}

func TestEngine_CircuitOpenIsNotRetried(t *testing.T) {
	client := &stubClient{handler: func(context.Context, string, int) (*providers.Reply, error) {
		return nil, providers.HTTPError(providers.OpenAI, http.StatusInternalServerError, "", "")
	}}
	e := startEngine(t, testConfig(), client,
		WithBreakerConfig(breaker.Config{FailureThreshold: 1, ResetTimeout: time.Minute}),
	)

	_, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI)
	if !errors.Is(err, providers.ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if providers.StatusOf(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", providers.StatusOf(err))
	}
	if n := len(client.Calls()); n != 1 {
		t.Errorf("open breaker must not reach the client, got %d calls", n)
	}

	st := e.Status()
	if st.CircuitBreakers[providers.OpenAI].State != breaker.StateOpen {
		t.Errorf("expected OPEN breaker in status, got %+v", st.CircuitBreakers[providers.OpenAI])
	}
	if len(st.CircuitBreakers) != len(providers.AllProviders()) {
		t.Errorf("expected a breaker per provider, got %d", len(st.CircuitBreakers))
	}
}

// ============================================================================
// Ordering
// ============================================================================

func TestEngine_RetriedRequestPrecedesNewArrivals(t *testing.T) {
	release := make(chan struct{})
	client := &stubClient{handler: func(_ context.Context, message string, call int) (*providers.Reply, error) {
		if message == "A" && call == 1 {
			<-release
			return nil, providers.HTTPError(providers.OpenAI, http.StatusServiceUnavailable, "", "")
		}
		return okReply(message), nil
	}}

	cfg := testConfig()
	cfg.MaxInFlight = 1
	e := startEngine(t, cfg, client)

	a := submit(e, context.Background(), "A")
	waitFor(t, "A to execute", func() bool { return len(client.Calls()) == 1 })

	b := submit(e, context.Background(), "B")
	waitFor(t, "B to queue", func() bool { return e.Status().QueuedRequests == 1 })

	close(release)

	if res := <-a; res.err != nil {
		t.Fatalf("A failed: %v", res.err)
	}
	if res := <-b; res.err != nil {
		t.Fatalf("B failed: %v", res.err)
	}

	got := strings.Join(client.Calls(), ",")
	if got != "A,A,B" {
		t.Errorf("execution order = %s, want A,A,B", got)
	}
}

func TestEngine_PriorityTiers(t *testing.T) {
	release := make(chan struct{})
	client := blockingClient(release)

	cfg := testConfig()
	cfg.MaxInFlight = 1
	e := startEngine(t, cfg, client)

	x := submit(e, context.Background(), "X")
	waitFor(t, "X to execute", func() bool { return len(client.Calls()) == 1 })

	low := submit(e, context.Background(), "L", WithPriority(PriorityLow))
	waitFor(t, "L to queue", func() bool { return e.Status().QueuedRequests == 1 })
	m1 := submit(e, context.Background(), "M1")
	waitFor(t, "M1 to queue", func() bool { return e.Status().QueuedRequests == 2 })
	m2 := submit(e, context.Background(), "M2")
	waitFor(t, "M2 to queue", func() bool { return e.Status().QueuedRequests == 3 })
	high := submit(e, context.Background(), "H", WithPriority(PriorityHigh))
	waitFor(t, "H to queue", func() bool { return e.Status().QueuedRequests == 4 })

	close(release)
	for _, ch := range []<-chan result{x, low, m1, m2, high} {
		if res := <-ch; res.err != nil {
			t.Fatalf("unexpected error %v", res.err)
		}
	}

	got := strings.Join(client.Calls(), ",")
	if got != "X,H,M1,M2,L" {
		t.Errorf("execution order = %s, want X,H,M1,M2,L", got)
	}
}

// ============================================================================
// Cancellation and timeouts
// ============================================================================

func TestEngine_CancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	client := blockingClient(release)

	cfg := testConfig()
	cfg.MaxInFlight = 1
	e := startEngine(t, cfg, client)

	x := submit(e, context.Background(), "X")
	waitFor(t, "X to execute", func() bool { return len(client.Calls()) == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	b := submit(e, ctx, "B")
	waitFor(t, "B to queue", func() bool { return e.Status().QueuedRequests == 1 })

	cancel()
	res := <-b
	if !errors.Is(res.err, providers.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", res.err)
	}
	if e.Status().QueuedRequests != 0 {
		t.Error("cancelled request must leave the queue")
	}

	close(release)
	<-x
	time.Sleep(20 * time.Millisecond)

	if got := strings.Join(client.Calls(), ","); got != "X" {
		t.Errorf("cancelled request reached the client: %s", got)
	}
}

func TestEngine_CancelWhileExecuting(t *testing.T) {
	client := &stubClient{handler: func(ctx context.Context, _ string, _ int) (*providers.Reply, error) {
		<-ctx.Done()
		return nil, providers.CancelledError(ctx.Err())
	}}
	e := startEngine(t, testConfig(), client)

	ctx, cancel := context.WithCancel(context.Background())
	res := submit(e, ctx, "Hello")
	waitFor(t, "request to execute", func() bool { return len(client.Calls()) == 1 })
	cancel()

	if r := <-res; !errors.Is(r.err, providers.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", r.err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(client.Calls()); n != 1 {
		t.Errorf("cancelled requests are not retried, got %d calls", n)
	}
}

func TestEngine_QueueTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := blockingClient(release)

	cfg := testConfig()
	cfg.MaxInFlight = 1
	cfg.RequestTimeout = 30 * time.Millisecond
	e := startEngine(t, cfg, client)

	submit(e, context.Background(), "X")
	waitFor(t, "X to execute", func() bool { return len(client.Calls()) == 1 })

	_, err := e.HandleRequest(context.Background(), "B", "gpt-4", providers.OpenAI)
	if !errors.Is(err, providers.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if providers.StatusOf(err) != http.StatusRequestTimeout {
		t.Errorf("status = %d, want 408", providers.StatusOf(err))
	}
	if e.Status().QueuedRequests != 0 {
		t.Error("timed out request must leave the queue")
	}
}

// ============================================================================
// Rate limiting
// ============================================================================

func TestEngine_RateLimitWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	client := &stubClient{}

	cfg := testConfig()
	cfg.RequestTimeout = 10 * time.Minute
	e := startEngine(t, cfg, client, WithClock(clock))

	first := make([]<-chan result, 0, cfg.RateLimit)
	for i := 0; i < cfg.RateLimit; i++ {
		first = append(first, submit(e, context.Background(), "Hello"))
	}
	for _, ch := range first {
		if res := <-ch; res.err != nil {
			t.Fatalf("request failed: %v", res.err)
		}
	}

	last := submit(e, context.Background(), "one too many")
	waitFor(t, "request 51 to queue", func() bool { return e.Status().QueuedRequests == 1 })

	time.Sleep(20 * time.Millisecond)
	if n := len(client.Calls()); n != cfg.RateLimit {
		t.Fatalf("request 51 executed inside the window: %d calls", n)
	}
	st := e.Status()
	if st.RateLimits.Remaining != 0 || st.RateLimits.ResetsIn != cfg.RateWindow {
		t.Errorf("unexpected rate limits %+v", st.RateLimits)
	}

	for i := 0; i < 5 && len(client.Calls()) == cfg.RateLimit; i++ {
		clock.Advance(cfg.RateWindow + time.Second)
		deadline := time.Now().Add(200 * time.Millisecond)
		for len(client.Calls()) == cfg.RateLimit && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	if res := <-last; res.err != nil {
		t.Fatalf("request 51 failed: %v", res.err)
	}
	if n := len(client.Calls()); n != cfg.RateLimit+1 {
		t.Errorf("expected %d calls, got %d", cfg.RateLimit+1, n)
	}
}

// ============================================================================
// Terminal
// ============================================================================

type recordingTerminal struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingTerminal) WriteLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingTerminal) contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	got := FormatLine(LevelWarning, ts, "Rate limit reached, waiting...")
	want := "\x1b[33m[2024-03-01T12:30:00Z] Rate limit reached, waiting...\x1b[0m"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestEngine_TerminalLog(t *testing.T) {
	term := &recordingTerminal{}
	e := startEngine(t, testConfig(), &stubClient{}, WithTerminal(term))

	if _, err := e.HandleRequest(context.Background(), "Hello", "gpt-4", providers.OpenAI); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Virtual proxy server started successfully",
		"queued (1 in queue)",
		"completed successfully",
	} {
		if !term.contains(want) {
			t.Errorf("terminal is missing %q", want)
		}
	}
}
