package proxy

import (
	"math"
	"time"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/providers"
)

// Status is a point-in-time view of the engine.
type Status struct {
	Running            bool                                    `json:"running"`
	Uptime             time.Duration                           `json:"-"`
	UptimeMillis       int64                                   `json:"uptime_ms"`
	RequestCount       int                                     `json:"request_count"`
	PendingRequests    int                                     `json:"pending_requests"`
	QueuedRequests     int                                     `json:"queued_requests"`
	RequestsLastMinute int                                     `json:"requests_last_minute"`
	QueueCapacity      QueueCapacity                           `json:"queue_capacity"`
	RateLimits         RateLimits                              `json:"rate_limits"`
	CircuitBreakers    map[providers.Provider]breaker.Snapshot `json:"circuit_breakers"`
}

// QueueCapacity reports queue usage.
type QueueCapacity struct {
	Used       int `json:"used"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// RateLimits reports rate window usage.
type RateLimits struct {
	Current        int           `json:"current"`
	Limit          int           `json:"limit"`
	Remaining      int           `json:"remaining"`
	ResetsIn       time.Duration `json:"-"`
	ResetsInMillis int64         `json:"resets_in_ms"`
}

// Status returns the current engine state. It is cheap enough to poll.
func (e *Engine) Status() Status {
	e.mu.Lock()
	s := e.sess
	running := e.running
	queued := s.queue.Len()
	pending := len(s.pending)
	count := s.requestCount
	started := s.started
	e.mu.Unlock()

	var uptime time.Duration
	if running && !started.IsZero() {
		uptime = e.clock.Since(started)
	}

	current := s.window.Count()
	resetsIn := s.window.ResetIn()

	st := Status{
		Running:            running,
		Uptime:             uptime,
		UptimeMillis:       uptime.Milliseconds(),
		RequestCount:       count,
		PendingRequests:    pending,
		QueuedRequests:     queued,
		RequestsLastMinute: current,
		QueueCapacity: QueueCapacity{
			Used:       queued,
			Total:      e.config.MaxQueueSize,
			Percentage: int(math.Round(float64(queued) / float64(e.config.MaxQueueSize) * 100)),
		},
		RateLimits: RateLimits{
			Current:        current,
			Limit:          e.config.RateLimit,
			Remaining:      s.window.Remaining(),
			ResetsIn:       resetsIn,
			ResetsInMillis: resetsIn.Milliseconds(),
		},
		CircuitBreakers: make(map[providers.Provider]breaker.Snapshot, len(e.breakers)),
	}
	for p, cb := range e.breakers {
		st.CircuitBreakers[p] = cb.Snapshot()
	}
	return st
}

// Breaker returns the circuit breaker guarding p.
func (e *Engine) Breaker(p providers.Provider) (*breaker.CircuitBreaker, bool) {
	cb, ok := e.breakers[p]
	return cb, ok
}
