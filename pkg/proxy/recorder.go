package proxy

import (
	"errors"
	"time"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/providers"
)

// Recorder receives engine measurements. The metrics collector implements it.
type Recorder interface {
	// QueueDepth reports the queued and in-flight request counts.
	QueueDepth(queued, inFlight int)

	// WindowUsage reports the rate window fill.
	WindowUsage(current, limit int)

	// RequestDispatched is called for every execution, retries included.
	RequestDispatched(p providers.Provider)

	// RequestRetried is called when a failed request is re-queued.
	RequestRetried(p providers.Provider)

	// RequestFinished is called once per HandleRequest with the outcome
	// label and the time since the request was queued.
	RequestFinished(p providers.Provider, outcome string, d time.Duration)

	// BreakerState is called on every breaker transition.
	BreakerState(p providers.Provider, s breaker.State)
}

type nopRecorder struct{}

func (nopRecorder) QueueDepth(int, int)                                       {}
func (nopRecorder) WindowUsage(int, int)                                      {}
func (nopRecorder) RequestDispatched(providers.Provider)                      {}
func (nopRecorder) RequestRetried(providers.Provider)                         {}
func (nopRecorder) RequestFinished(providers.Provider, string, time.Duration) {}
func (nopRecorder) BreakerState(providers.Provider, breaker.State)            {}

// OutcomeLabel returns "success" for a nil error and the error kind otherwise.
func OutcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return string(apiErr.Kind)
	}
	return "error"
}
