package ratelimit

import (
	"sync/atomic"
)

// SlotLimiter bounds the number of simultaneous in-flight requests. Every
// successful Acquire must be paired with one Release.
type SlotLimiter struct {
	limit   int64
	current int64
}

// NewSlotLimiter creates a limiter with limit slots. A limit of zero or
// less never refuses a slot.
func NewSlotLimiter(limit int) *SlotLimiter {
	return &SlotLimiter{limit: int64(limit)}
}

// Acquire takes a slot and reports whether one was free.
func (l *SlotLimiter) Acquire() bool {
	if atomic.AddInt64(&l.current, 1) > l.limit && l.limit > 0 {
		atomic.AddInt64(&l.current, -1)
		return false
	}
	return true
}

// Release returns a slot.
func (l *SlotLimiter) Release() {
	if atomic.AddInt64(&l.current, -1) < 0 {
		atomic.StoreInt64(&l.current, 0)
	}
}

// Current returns the number of slots in use.
func (l *SlotLimiter) Current() int {
	return int(atomic.LoadInt64(&l.current))
}

// Limit returns the slot count.
func (l *SlotLimiter) Limit() int {
	return int(l.limit)
}

// Remaining returns the number of free slots, or -1 when unbounded.
func (l *SlotLimiter) Remaining() int {
	if l.limit <= 0 {
		return -1
	}
	if r := l.limit - atomic.LoadInt64(&l.current); r > 0 {
		return int(r)
	}
	return 0
}
