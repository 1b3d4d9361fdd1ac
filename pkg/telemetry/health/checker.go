package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Component and overall statuses.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc performs a health check for a component. It returns nil if the
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Optional bool   `json:"optional,omitempty"`

	// DurationMillis is how long the check took.
	DurationMillis int64 `json:"duration_ms"`
}

// HealthStatus is the overall health of the relay.
type HealthStatus struct {
	Status       string                 `json:"status"`
	Checks       map[string]CheckResult `json:"checks,omitempty"`
	UptimeMillis int64                  `json:"uptime_ms,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// ErrCheckTimeout is reported when a check outlives the check timeout.
var ErrCheckTimeout = errors.New("health check timeout")

type registered struct {
	fn       CheckFunc
	optional bool
}

// Checker runs component checks. A failing required check makes the relay
// unhealthy; a failing optional check only degrades it.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registered
	timeout time.Duration
	clock   clockwork.Clock
	started time.Time
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(timeout time.Duration, clock clockwork.Clock) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Checker{
		checks:  make(map[string]registered),
		timeout: timeout,
		clock:   clock,
		started: clock.Now(),
	}
}

// Register adds a required check, replacing any check of the same name.
func (c *Checker) Register(name string, check CheckFunc) {
	c.register(name, check, false)
}

// RegisterOptional adds a check whose failure only degrades the relay.
func (c *Checker) RegisterOptional(name string, check CheckFunc) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check CheckFunc, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{fn: check, optional: optional}
}

// Unregister removes a check.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports that the process is up.
func (c *Checker) Liveness() HealthStatus {
	now := c.clock.Now()
	return HealthStatus{
		Status:       StatusOK,
		UptimeMillis: now.Sub(c.started).Milliseconds(),
		Timestamp:    now.UTC(),
	}
}

// Readiness runs every check concurrently and aggregates the results.
func (c *Checker) Readiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.run(ctx, check.fn)
			result.Optional = check.optional

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status == StatusOK {
			continue
		}
		if !result.Optional {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: c.clock.Now().UTC(),
	}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{
		Status:         StatusOK,
		DurationMillis: c.clock.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
