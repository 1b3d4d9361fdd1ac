package proxy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"multimind-hq/relay/pkg/providers"
)

// Priority orders queued requests. Lower values are served first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts "high", "medium" or "low". An empty string is medium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "", "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q", s)
	}
}

// RequestOption customizes a single HandleRequest call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	priority Priority
}

// WithPriority sets the initial priority. Requests default to medium.
func WithPriority(p Priority) RequestOption {
	return func(o *requestOptions) { o.priority = p }
}

type outcome struct {
	reply *providers.Reply
	err   error
}

// queuedRequest is owned by the engine. Fields below ctx are guarded by the
// engine mutex.
type queuedRequest struct {
	id         string
	provider   providers.Provider
	model      string
	message    string
	enqueuedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	result chan outcome // buffered, receives exactly one value

	priority Priority
	seq      uint64
	retries  int
	index    int // heap position, -1 when not queued
	settled  bool
}

func (r *queuedRequest) queued() bool {
	return r.index >= 0
}
