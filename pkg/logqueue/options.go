package logqueue

import "time"

// Option configures a Queue at construction time.
type Option[T any] func(*Queue[T])

// WithStore replaces the default segmented storage backend. Nil stores are
// ignored.
func WithStore[T any](s Store[Request[T]]) Option[T] {
	return func(q *Queue[T]) {
		if s != nil {
			q.store = s
		}
	}
}

// WithDropHandler installs the queue-level observer for discarded events.
func WithDropHandler[T any](h DropHandler[T]) Option[T] {
	return func(q *Queue[T]) {
		q.onDrop = h
	}
}

// WithGrowHandler installs the observer for over-limit enqueues under the
// grow policy. The handler does not mention the event type, so the type
// parameter cannot be inferred; instantiate explicitly, as in
// WithGrowHandler[string](h).
func WithGrowHandler[T any](h GrowHandler) Option[T] {
	return func(q *Queue[T]) {
		q.onGrow = h
	}
}

// WithParkInterval bounds how long a blocked producer sleeps between limit
// re-checks. Non-positive durations are ignored. Like WithGrowHandler, the
// type parameter must be supplied explicitly: WithParkInterval[string](d).
func WithParkInterval[T any](d time.Duration) Option[T] {
	return func(q *Queue[T]) {
		if d > 0 {
			q.parkInterval = d
		}
	}
}
