// Package events provides a small synchronous publish/subscribe bus used to
// announce engine lifecycle transitions.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Well-known event names.
const (
	EventStarted = "started"
	EventStopped = "stopped"
)

const (
	// DefaultMaxListeners is the per-event subscriber count above which the
	// bus logs a leak warning.
	DefaultMaxListeners = 10

	// MaxEmitDepth bounds nested Emit calls made from inside handlers.
	MaxEmitDepth = 25
)

// Handler receives an emitted payload. A handler that emits again should
// pass ctx on so the nesting is counted.
type Handler func(ctx context.Context, payload any)

type depthKey struct{}

func depthOf(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to subscribers in subscription order. Handlers run
// on the emitting goroutine. It is safe for concurrent use.
type Bus struct {
	maxListeners int
	logger       *slog.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
	warned   map[string]bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		maxListeners: DefaultMaxListeners,
		logger:       slog.Default().With("component", "events"),
		handlers:     make(map[string][]subscription),
		warned:       make(map[string]bool),
	}
}

// Subscribe registers handler for event and returns a function that removes
// it. Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(event string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], subscription{id: id, handler: handler})
	count := len(b.handlers[event])
	warn := count > b.maxListeners && !b.warned[event]
	if warn {
		b.warned[event] = true
	}
	b.mu.Unlock()

	if warn {
		b.logger.Warn("possible event listener leak",
			"event", event,
			"listeners", count,
			"max_listeners", b.maxListeners,
		)
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[event]
	for i, s := range subs {
		if s.id == id {
			b.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[event]) == 0 {
		delete(b.handlers, event)
	}
}

// Emit calls every handler subscribed to event with a context carrying the
// emit nesting depth. A panicking handler is logged and skipped. Emits
// nested deeper than MaxEmitDepth through the same ctx chain are dropped;
// unrelated emits, including concurrent ones, never count against each
// other.
func (b *Bus) Emit(ctx context.Context, event string, payload any) {
	depth := depthOf(ctx)
	if depth >= MaxEmitDepth {
		b.logger.Error("event emit depth exceeded", "event", event, "max_depth", MaxEmitDepth)
		return
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event]))
	copy(subs, b.handlers[event])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(ctx, event, s.handler, payload)
	}
}

func (b *Bus) invoke(ctx context.Context, event string, handler Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	handler(ctx, payload)
}

// RemoveAll drops every handler for event.
func (b *Bus) RemoveAll(event string) {
	b.mu.Lock()
	delete(b.handlers, event)
	delete(b.warned, event)
	b.mu.Unlock()
}

// ListenerCount returns the number of handlers subscribed to event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}
