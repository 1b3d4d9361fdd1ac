package proxy

import (
	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/providers"
)

// monitor runs the queue health check every HealthInterval.
func (e *Engine) monitor(s *session) {
	defer s.loops.Done()

	ticker := e.clock.NewTicker(e.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			e.checkHealth(s)
		}
	}
}

// checkHealth evicts stale pending entries, warns about queue pressure and
// surfaces breakers that are not closed.
func (e *Engine) checkHealth(s *session) {
	now := e.clock.Now()

	e.mu.Lock()
	var stale []string
	for id, started := range s.pending {
		if now.Sub(started) > e.config.RequestTimeout {
			stale = append(stale, id)
			delete(s.pending, id)
		}
	}
	queued, pending := s.queue.Len(), len(s.pending)
	e.mu.Unlock()

	for _, id := range stale {
		e.logf(LevelWarning, "Request %s timed out and will be removed", id)
	}

	if float64(queued) > float64(e.config.MaxQueueSize)*e.config.CapacityWarning {
		e.logf(LevelWarning, "Queue is nearing capacity (%d/%d)", queued, e.config.MaxQueueSize)
	}

	if pending > 0 {
		e.logf(LevelInfo, "Current pending requests: %d", pending)
	}

	for _, p := range sortedProviders(e.breakers) {
		if state := e.breakers[p].State(); state != breaker.StateClosed {
			e.logf(LevelWarning, "Circuit breaker for %s is %s", p, state)
		}
	}

	e.recorder.QueueDepth(queued, pending)
	e.recorder.WindowUsage(s.window.Count(), e.config.RateLimit)
}

// cleanup prunes the rate window every CleanupInterval.
func (e *Engine) cleanup(s *session) {
	defer s.loops.Done()

	ticker := e.clock.NewTicker(e.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.window.Prune(); n > 0 {
				e.logger.Debug("pruned rate window", "removed", n)
			}
		}
	}
}

func sortedProviders(m map[providers.Provider]*breaker.CircuitBreaker) []providers.Provider {
	out := make([]providers.Provider, 0, len(m))
	for _, p := range providers.AllProviders() {
		if _, ok := m[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
