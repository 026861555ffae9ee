package core

import (
	"sync/atomic"
	"time"
	"weak"
)

// Handle is a scheduled callable, per spec.md §3, "Handle". run is a no-op
// once the handle is cancelled; it does not record whether it already ran.
type Handle struct {
	fn        func()
	cancelled atomic.Bool
	liveCheck func() bool // non-nil only for weak handles (spec.md §3, "TimerWeakHandle")
}

// Cancel marks the handle cancelled. It is idempotent: the second and later
// calls are no-ops (spec.md §8, round-trip property on Future.Cancel applies
// equally here).
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
}

// Cancelled reports whether the handle will no-op when run. A weak handle
// whose owner has been collected reports cancelled without requiring an
// explicit Cancel call (spec.md §3, "TimerWeakHandle ... cancels
// automatically when the callback is collected").
func (h *Handle) Cancelled() bool {
	if h.cancelled.Load() {
		return true
	}
	if h.liveCheck != nil && !h.liveCheck() {
		h.cancelled.Store(true)
		return true
	}
	return false
}

func (h *Handle) run() {
	if h.Cancelled() || h.fn == nil {
		return
	}
	h.fn()
}

// newWeakCallback builds a callback/liveCheck pair that invokes fn on owner
// only while owner is still reachable elsewhere, per the Design Note in
// spec.md §9 ("Weak callbacks ... model as (weak_owner, method_name) pairs;
// on fire, upgrade the weak reference; if gone, treat as cancelled").
func newWeakCallback[O any](owner *O, fn func(*O)) (callback func(), liveCheck func() bool) {
	wp := weak.Make(owner)
	callback = func() {
		if o := wp.Value(); o != nil {
			fn(o)
		}
	}
	liveCheck = func() bool { return wp.Value() != nil }
	return
}

// timerEntry is a TimerHandle's position in the loop's min-heap, ordered by
// absolute deadline (spec.md §3, "a min-heap of timer handles keyed by
// absolute deadline").
type timerEntry struct {
	handle *Handle
	when   time.Time
	index  int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
