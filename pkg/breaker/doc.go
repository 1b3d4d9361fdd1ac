// Package breaker provides a generic circuit breaker.
//
// A CircuitBreaker wraps any context-aware operation. It starts CLOSED and
// counts failures; reaching the threshold opens it, and every call then
// fails fast with ErrOpen until the reset timeout elapses. The first call
// after that moves it to HALF_OPEN, where a limited number of trial calls run. A
// trial call success closes the breaker, a trial call failure re-opens it.
//
// Every call is also bounded by a call timeout; exceeding it counts as a
// failure. Run drives a periodic Sweep that closes half-open breakers that
// have seen successes and forgets stale failures after a quiet period.
//
//	cb := breaker.New("openai", breaker.DefaultConfig())
//	go cb.Run(ctx)
//
//	reply, err := breaker.Do(ctx, cb, func(ctx context.Context) (*providers.Reply, error) {
//	    return client.SendMessage(ctx, msg, model)
//	})
//
// The package knows nothing about HTTP or providers.
package breaker
