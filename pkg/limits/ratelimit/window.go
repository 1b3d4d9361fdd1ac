package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RequestWindow is a sliding-log rate window. A request counts against the
// limit for exactly one window after it was recorded.
type RequestWindow struct {
	limit  int
	window time.Duration
	clock  clockwork.Clock

	mu         sync.Mutex
	timestamps []time.Time // ascending
}

// NewRequestWindow creates a window admitting limit requests per window.
// A nil clock means the wall clock.
func NewRequestWindow(limit int, window time.Duration, clock clockwork.Clock) *RequestWindow {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RequestWindow{
		limit:  limit,
		window: window,
		clock:  clock,
	}
}

// Record adds a timestamp for the current time and returns it.
func (w *RequestWindow) Record() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.timestamps = append(w.timestamps, now)
	return now
}

// Count returns the number of requests inside the window.
func (w *RequestWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countLocked(w.clock.Now())
}

// Full reports whether the window is at its limit.
func (w *RequestWindow) Full() bool {
	return w.Count() >= w.limit
}

// Remaining returns how many more requests the window admits right now.
func (w *RequestWindow) Remaining() int {
	if r := w.limit - w.Count(); r > 0 {
		return r
	}
	return 0
}

// ResetIn returns the time until the oldest live timestamp expires, or zero
// when the window is empty.
func (w *RequestWindow) ResetIn() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	i := w.firstLiveLocked(now)
	if i == len(w.timestamps) {
		return 0
	}
	return w.timestamps[i].Add(w.window).Sub(now)
}

// Prune drops expired timestamps and returns how many were removed.
func (w *RequestWindow) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.firstLiveLocked(w.clock.Now())
	if i == 0 {
		return 0
	}
	w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	return i
}

// Reset forgets every timestamp.
func (w *RequestWindow) Reset() {
	w.mu.Lock()
	w.timestamps = nil
	w.mu.Unlock()
}

// Limit returns the configured request limit.
func (w *RequestWindow) Limit() int {
	return w.limit
}

// Window returns the window length.
func (w *RequestWindow) Window() time.Duration {
	return w.window
}

func (w *RequestWindow) countLocked(now time.Time) int {
	return len(w.timestamps) - w.firstLiveLocked(now)
}

// firstLiveLocked returns the index of the first timestamp younger than the
// window. Caller must hold the lock.
func (w *RequestWindow) firstLiveLocked(now time.Time) int {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	return i
}
