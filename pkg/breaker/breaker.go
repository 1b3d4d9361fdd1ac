package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

var (
	// ErrOpen is returned without running the operation while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrHalfOpenLimit is returned when a half-open breaker has no trial call
	// slots left. The breaker re-opens when this happens.
	ErrHalfOpenLimit = errors.New("circuit breaker is open: maximum half-open calls exceeded")

	// ErrTimeout is returned when the operation outlives the call timeout.
	ErrTimeout = errors.New("circuit breaker: operation timed out")
)

// Config holds the breaker thresholds.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
	MonitorInterval  time.Duration `yaml:"monitor_interval"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
		MonitorInterval:  30 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = def.MonitorInterval
	}
	if c.CallTimeout < 0 {
		c.CallTimeout = 0
	}
	return c
}

// Option customizes a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = clock }
}

// WithFailurePredicate decides which errors count as failures. Errors the
// predicate rejects neither trip nor reset the breaker.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

// WithStateChangeHook is called after every state transition, outside the
// breaker's lock.
func WithStateChangeHook(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name          string     `json:"name"`
	State         State      `json:"state"`
	Failures      int        `json:"failures"`
	Successes     int        `json:"successes"`
	HalfOpenCalls int        `json:"half_open_calls"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	NextAttempt   *time.Time `json:"next_attempt,omitempty"`
}

// CircuitBreaker guards one dependency. It is safe for concurrent use.
type CircuitBreaker struct {
	name      string
	config    Config
	clock     clockwork.Clock
	isFailure func(error) bool
	onChange  func(name string, from, to State)
	logger    *slog.Logger

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	lastFailure   time.Time
	lastSuccess   time.Time
	nextAttempt   time.Time
}

type transition struct {
	from, to State
}

// New creates a closed breaker.
func New(name string, cfg Config, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		config:    cfg.withDefaults(),
		clock:     clockwork.NewRealClock(),
		isFailure: defaultIsFailure,
		state:     StateClosed,
		logger:    slog.Default().With("component", "breaker", "breaker", name),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.config
}

// Execute runs fn unless the breaker rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mu.Lock()
	tr, err := cb.allowLocked()
	cb.mu.Unlock()
	cb.notify(tr)
	if err != nil {
		return err
	}

	err = cb.call(ctx, fn)

	cb.mu.Lock()
	tr = cb.recordLocked(err)
	cb.mu.Unlock()
	cb.notify(tr)

	return err
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (cb *CircuitBreaker) allowLocked() (transition, error) {
	var tr transition
	now := cb.clock.Now()

	if cb.state == StateOpen {
		if now.Before(cb.nextAttempt) {
			return tr, ErrOpen
		}
		tr = cb.setStateLocked(StateHalfOpen, now)
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return cb.tripLocked(now), ErrHalfOpenLimit
		}
		cb.halfOpenCalls++
	}

	return tr, nil
}

func (cb *CircuitBreaker) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("circuit breaker %q: operation panicked: %v", cb.name, r)
			}
		}()
		done <- fn(callCtx)
	}()

	if cb.config.CallTimeout <= 0 {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := cb.clock.NewTimer(cb.config.CallTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.Chan():
		cancel()
		return fmt.Errorf("%w after %s", ErrTimeout, cb.config.CallTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cb *CircuitBreaker) recordLocked(err error) transition {
	now := cb.clock.Now()

	switch {
	case err == nil:
		cb.failures = 0
		cb.successes++
		cb.lastSuccess = now
		if cb.state == StateHalfOpen {
			return cb.setStateLocked(StateClosed, now)
		}
	case cb.isFailure(err):
		cb.failures++
		cb.successes = 0
		cb.lastFailure = now
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			return cb.tripLocked(now)
		}
	default:
		// Not the dependency's fault; give the trial call slot back.
		if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
	}
	return transition{}
}

func (cb *CircuitBreaker) tripLocked(now time.Time) transition {
	tr := cb.setStateLocked(StateOpen, now)
	cb.nextAttempt = now.Add(cb.config.ResetTimeout)
	return tr
}

func (cb *CircuitBreaker) setStateLocked(to State, now time.Time) transition {
	from := cb.state
	if from == to {
		return transition{}
	}
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.halfOpenCalls = 0
		cb.nextAttempt = time.Time{}
	case StateHalfOpen:
		cb.halfOpenCalls = 0
		cb.nextAttempt = time.Time{}
	case StateOpen:
		cb.halfOpenCalls = 0
		cb.nextAttempt = now.Add(cb.config.ResetTimeout)
	}
	return transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(tr transition) {
	if tr.from == "" || tr.from == tr.to {
		return
	}

	if tr.to == StateOpen {
		cb.logger.Warn("circuit breaker opened", "from", string(tr.from), "reset_timeout", cb.config.ResetTimeout)
	} else {
		cb.logger.Info("circuit breaker state changed", "from", string(tr.from), "to", string(tr.to))
	}

	if cb.onChange != nil {
		cb.onChange(cb.name, tr.from, tr.to)
	}
}

// Sweep runs one monitor pass: a half-open breaker with successes closes,
// and a closed breaker forgets failures older than the reset timeout.
func (cb *CircuitBreaker) Sweep() {
	cb.mu.Lock()
	now := cb.clock.Now()
	var tr transition

	switch cb.state {
	case StateHalfOpen:
		if cb.successes > 0 {
			tr = cb.setStateLocked(StateClosed, now)
		}
	case StateClosed:
		if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.config.ResetTimeout {
			cb.failures = 0
			cb.lastFailure = time.Time{}
		}
	}
	cb.mu.Unlock()

	cb.notify(tr)
}

// Run calls Sweep every monitor interval until ctx is done.
func (cb *CircuitBreaker) Run(ctx context.Context) {
	ticker := cb.clock.NewTicker(cb.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			cb.Sweep()
		}
	}
}

// State returns the current state. It does not advance OPEN to HALF_OPEN;
// only a call does that.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	tr := cb.setStateLocked(StateClosed, cb.clock.Now())
	cb.failures = 0
	cb.successes = 0
	cb.lastFailure = time.Time{}
	cb.mu.Unlock()

	cb.notify(tr)
}

// Snapshot returns the current counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Name:          cb.name,
		State:         cb.state,
		Failures:      cb.failures,
		Successes:     cb.successes,
		HalfOpenCalls: cb.halfOpenCalls,
		LastFailure:   timePtr(cb.lastFailure),
		LastSuccess:   timePtr(cb.lastSuccess),
		NextAttempt:   timePtr(cb.nextAttempt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
