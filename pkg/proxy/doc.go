// Package proxy implements the request engine: an in-process gateway that
// queues chat requests, enforces a global rate limit, retries transient
// failures with priority escalation, and routes each request through the
// provider's circuit breaker and client.
//
// # Architecture
//
// The engine is made of a few cooperating pieces:
//
//   - Engine: lifecycle (Start, Stop, Restart) and the HandleRequest entry point
//   - Dispatcher: a single goroutine that owns every dequeue decision
//   - Workers: one goroutine per executing request
//   - Monitors: the queue health check (5s) and rate window cleanup (10s)
//
// # Basic Usage
//
//	factory := providerfactory.New(creds, providers.DefaultClientConfig())
//	engine := proxy.New(proxy.DefaultConfig(), factory,
//	    proxy.WithBus(bus),
//	    proxy.WithRecorder(collector),
//	)
//	if err := engine.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop(context.Background())
//
//	reply, err := engine.HandleRequest(ctx, "Hello", "gpt-3.5-turbo", providers.OpenAI)
//
// # Dequeue Rules
//
// The dispatcher takes the next request only when the queue is non-empty,
// the rate window holds fewer than RateLimit timestamps, no retry hold is
// active and, when MaxInFlight is positive, an in-flight slot is free. Requests are served high before
// medium before low, FIFO within a tier. Every execution records a window
// timestamp and increments the request count.
//
// # Retries
//
// A failed execution is re-queued at high priority unless its status is
// 400, 401, 403 or 404, it was cancelled, timed out or rejected by an open
// breaker, or it has already been retried MaxRetries times. Each retry
// pauses the dispatcher for RetryDelay times the retry number.
//
// # Status Codes
//
// Engine-level failures are providers.APIError values:
//
//   - 503 queue_full: the queue already holds MaxQueueSize requests
//   - 503 not_running: the engine is stopped
//   - 503 circuit_open: the provider's breaker rejected the call
//   - 408 timeout: the request stayed queued longer than RequestTimeout
//
// # Thread Safety
//
// All Engine methods are safe for concurrent use.
package proxy
