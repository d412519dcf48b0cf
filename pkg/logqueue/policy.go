package logqueue

// OverflowPolicy selects what Enqueue does once the live count exceeds the
// request limit.
type OverflowPolicy int

const (
	// OverflowDiscard evicts the oldest queued requests until the live count
	// is back at the limit, then appends the new one.
	OverflowDiscard OverflowPolicy = iota

	// OverflowBlock stalls the producer until the consumer has drained the
	// queue down to the limit. Nothing is ever discarded.
	OverflowBlock

	// OverflowGrow accepts the request beyond the limit and notifies the
	// grow handler so the owner can raise the limit out of band.
	OverflowGrow
)

// String returns the policy name used in benchmark reports and test output.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDiscard:
		return "discard"
	case OverflowBlock:
		return "block"
	case OverflowGrow:
		return "grow"
	default:
		return "unknown"
	}
}

// Request couples a log event with its failure continuation. OnDrop, when
// set, runs if the event is evicted instead of delivered.
type Request[T any] struct {
	Event  T
	OnDrop func(T)
}

// DropHandler observes every event evicted by the discard policy, oldest
// first, one call per event. It runs synchronously on the enqueueing
// goroutine.
type DropHandler[T any] func(event T)

// GrowHandler observes every enqueue that pushed the live count past the
// request limit under the grow policy. count is the live count that enqueue
// observed, including the incoming event.
type GrowHandler func(count int64)
