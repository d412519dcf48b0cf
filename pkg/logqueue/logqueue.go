package logqueue

import (
	"sync/atomic"
	"time"

	"github.com/i5heu/GoLogQueue/pkg/segmpmc"
)

// Store is the pluggable FIFO backend holding queued requests. Backends must
// be unbounded (the request limit is enforced by the queue's live count,
// never by storage) and safe for concurrent use. pkg/segmpmc, pkg/linkmpmc
// and pkg/mutexfifo all qualify.
type Store[T any] interface {
	Enqueue(T)
	Dequeue() (T, bool)
	Len() int
	Empty() bool
}

// Queue is a soft-bounded, multi-producer FIFO queue for log events. A
// single atomic live count enforces the request limit; the overflow policy
// decides whether an over-limit enqueue discards the oldest requests, stalls
// the producer, or proceeds past the limit with a notification.
//
// All methods are safe for concurrent use. The drain side is built for one
// logical consumer calling DequeueBatch in a loop; concurrent drains are
// tolerated but not coordinated.
type Queue[T any] struct {
	store        Store[Request[T]]
	count        atomic.Int64 // live count: counted in, not yet drained or evicted
	limit        atomic.Int64 // request limit; a soft cap
	policy       OverflowPolicy
	gate         *gate
	parkInterval time.Duration
	onDrop       DropHandler[T]
	onGrow       GrowHandler
	stats        counters
}

// New creates a Queue with the given request limit and overflow policy.
// It panics if the limit is not positive or the policy is unknown.
func New[T any](requestLimit int, policy OverflowPolicy, opts ...Option[T]) *Queue[T] {
	if requestLimit <= 0 {
		panic("logqueue: request limit must be positive")
	}
	switch policy {
	case OverflowDiscard, OverflowBlock, OverflowGrow:
	default:
		panic("logqueue: unknown overflow policy")
	}
	q := &Queue[T]{
		store:        segmpmc.New[Request[T]](),
		policy:       policy,
		gate:         newGate(),
		parkInterval: defaultParkInterval,
	}
	q.limit.Store(int64(requestLimit))
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a log event and its optional drop continuation to the queue,
// applying the overflow policy when the live count exceeds the request
// limit. It returns true when the queue was empty immediately before this
// call, the cue for callers to wake a dormant drain loop.
//
// Under OverflowBlock the call stalls until the consumer drains the queue
// back to the limit; Clear and SetRequestLimit also release it. Enqueue
// panics on a nil event (nil interface values; a typed nil pointer inside a
// non-nil interface is the caller's to catch).
func (q *Queue[T]) Enqueue(event T, onDrop func(T)) bool {
	if any(event) == nil {
		panic("logqueue: enqueue of nil event")
	}

	// Count first, append last: the slot is claimed before the policy runs,
	// so a discard pass may evict other producers' requests but never
	// miscounts its own.
	n := q.count.Add(1)
	q.stats.noteHighWater(n)

	if n > q.limit.Load() {
		switch q.policy {
		case OverflowDiscard:
			q.evictOldest()
		case OverflowBlock:
			q.waitBelowLimit()
		case OverflowGrow:
			q.stats.growNotices.Add(1)
			if q.onGrow != nil {
				q.onGrow(n)
			}
		}
	}

	q.store.Enqueue(Request[T]{Event: event, OnDrop: onDrop})
	q.stats.enqueued.Add(1)
	return n == 1
}

// evictOldest removes stored requests oldest-first until the live count is
// back at the limit, running the per-request continuation and the drop
// handler for each. A racing drain can empty the storage mid-pass; the pass
// then stops, the drain's own decrements having settled the count.
func (q *Queue[T]) evictOldest() {
	for q.count.Load() > q.limit.Load() {
		req, ok := q.store.Dequeue()
		if !ok {
			return
		}
		q.decrement()
		q.stats.dropped.Add(1)
		if req.OnDrop != nil {
			req.OnDrop(req.Event)
		}
		if q.onDrop != nil {
			q.onDrop(req.Event)
		}
	}
}

// decrement lowers the live count by one, flooring at zero, and returns the
// resulting value. The floor keeps the count non-negative when a drain races
// a Clear that already zeroed it; a stranded request then drains later
// without moving the count below zero.
func (q *Queue[T]) decrement() int64 {
	for {
		n := q.count.Load()
		if n <= 0 {
			return 0
		}
		if q.count.CompareAndSwap(n, n-1) {
			return n - 1
		}
	}
}

// DequeueBatch removes and returns up to maxCount requests in FIFO order.
// An empty queue yields nil without touching the count. The caller owns the
// returned requests. It panics if maxCount is not positive.
func (q *Queue[T]) DequeueBatch(maxCount int) []Request[T] {
	if maxCount <= 0 {
		panic("logqueue: batch size must be positive")
	}
	if q.store.Empty() {
		return nil
	}
	hint := q.store.Len()
	if hint > maxCount {
		hint = maxCount
	}
	if hint < 1 {
		hint = 1
	}
	return q.drainInto(make([]Request[T], 0, hint), maxCount)
}

// DequeueBatchInto appends up to maxCount requests to dst in FIFO order and
// returns the extended slice, letting a hot drain loop reuse one backing
// array. It panics if maxCount is not positive.
func (q *Queue[T]) DequeueBatchInto(dst []Request[T], maxCount int) []Request[T] {
	if maxCount <= 0 {
		panic("logqueue: batch size must be positive")
	}
	if q.store.Empty() {
		return dst
	}
	return q.drainInto(dst, maxCount)
}

// drainInto moves up to maxCount requests from storage to dst. Decrements
// land immediately except under OverflowBlock, where they are batched behind
// an opportunistic gate acquisition: with the lock they end in one
// broadcast, without it the wake is skipped and parked producers catch up on
// their next timed re-check. The decrements themselves are never skipped.
func (q *Queue[T]) drainInto(dst []Request[T], maxCount int) []Request[T] {
	batched := q.policy == OverflowBlock
	taken := 0
	for taken < maxCount {
		req, ok := q.store.Dequeue()
		if !ok {
			break
		}
		dst = append(dst, req)
		taken++
		if !batched {
			q.decrement()
		}
	}
	if taken == 0 {
		return dst
	}
	q.stats.drained.Add(int64(taken))
	if batched {
		if q.gate.mu.TryLock() {
			for i := 0; i < taken; i++ {
				q.decrement()
			}
			q.gate.broadcastLocked()
			q.gate.mu.Unlock()
		} else {
			for i := 0; i < taken; i++ {
				q.decrement()
			}
		}
	}
	return dst
}

// Clear empties the queue: storage is drained, the live count is zeroed and
// every parked producer is released. Cleared requests do not run drop
// continuations; those belong to discard evictions. Clear is idempotent and
// never pauses producers, so requests racing it may land right after.
func (q *Queue[T]) Clear() {
	removed := int64(0)
	for {
		if _, ok := q.store.Dequeue(); !ok {
			break
		}
		removed++
	}
	if removed > 0 {
		q.stats.cleared.Add(removed)
	}
	q.count.Store(0)
	q.gate.broadcast()
}

// IsEmpty reports whether the queue is empty. It consults both the storage
// and the live count, so a request between its count increment and its
// append still registers as present.
func (q *Queue[T]) IsEmpty() bool {
	return q.store.Empty() && q.count.Load() == 0
}

// Count returns the approximate live count, for diagnostics only; it can
// lag both appends and drains.
func (q *Queue[T]) Count() int64 {
	return q.count.Load()
}

// RequestLimit returns the current soft capacity.
func (q *Queue[T]) RequestLimit() int {
	return int(q.limit.Load())
}

// SetRequestLimit replaces the soft capacity out of band, typically from a
// grow handler. Parked producers re-check against the new limit right away.
// It panics if the limit is not positive.
func (q *Queue[T]) SetRequestLimit(limit int) {
	if limit <= 0 {
		panic("logqueue: request limit must be positive")
	}
	q.limit.Store(int64(limit))
	q.gate.broadcast()
}

// Policy returns the overflow policy fixed at construction.
func (q *Queue[T]) Policy() OverflowPolicy {
	return q.policy
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue[T]) Stats() Stats {
	return q.stats.snapshot()
}
