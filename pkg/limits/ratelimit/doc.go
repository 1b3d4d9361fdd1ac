// Package ratelimit provides the admission primitives used by the request
// engine.
//
// # Request Window
//
// RequestWindow keeps one timestamp per admitted request and counts the
// timestamps that fall inside a rolling window:
//
//	w := ratelimit.NewRequestWindow(50, time.Minute, clock)
//	if !w.Full() {
//	    w.Record()
//	}
//
// Timestamps expire on their own; Prune only reclaims memory.
//
// # Slot Limiter
//
// SlotLimiter is a counting semaphore bounding in-flight work:
//
//	slots := ratelimit.NewSlotLimiter(4)
//	if slots.Acquire() {
//	    defer slots.Release()
//	}
//
// # Thread Safety
//
// Both types are safe for concurrent use.
package ratelimit
