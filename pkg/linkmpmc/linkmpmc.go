package linkmpmc

import (
	"sync/atomic"
)

// linkNode is one link in the chain. Its value is written by the enqueuer
// that created the node and read only by the dequeuer that wins the head CAS
// for it.
type linkNode[T any] struct {
	value T
	next  atomic.Pointer[linkNode[T]]
}

// LinkQueue is an unbounded, lock-free, multi-producer/multi-consumer FIFO
// queue built from singly linked nodes (Michael-Scott scheme). head always
// points at a sentinel; head.next is the oldest element.
type LinkQueue[T any] struct {
	head   atomic.Pointer[linkNode[T]]
	tail   atomic.Pointer[linkNode[T]]
	length atomic.Int64
}

// New creates an empty LinkQueue.
func New[T any]() *LinkQueue[T] {
	q := &LinkQueue[T]{}
	sentinel := &linkNode[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue appends a value at the tail. It never blocks; the queue grows by
// one node per element.
func (q *LinkQueue[T]) Enqueue(val T) {
	n := &linkNode[T]{value: val}
	for {
		tail := q.tail.Load()
		if tail.next.CompareAndSwap(nil, n) {
			// Linked in. Swing the tail forward; losing this CAS just means
			// another goroutine already helped.
			q.tail.CompareAndSwap(tail, n)
			q.length.Add(1)
			return
		}
		// The tail is lagging: help it forward and retry.
		q.tail.CompareAndSwap(tail, tail.next.Load())
	}
}

// Dequeue removes and returns the oldest value.
// If the queue is empty, it returns the zero value and false.
func (q *LinkQueue[T]) Dequeue() (T, bool) {
	for {
		head := q.head.Load()
		next := head.next.Load()
		if next == nil {
			var zero T
			return zero, false
		}
		if q.head.CompareAndSwap(head, next) {
			// next became the new sentinel; this goroutine owns its value.
			val := next.value
			var zero T
			next.value = zero // drop the reference so the GC can collect it
			q.length.Add(-1)
			return val, true
		}
	}
}

// Len returns an approximate count of stored elements. The counter trails
// the pointer CASes, so it is clamped at zero.
func (q *LinkQueue[T]) Len() int {
	if n := q.length.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Empty reports whether the queue holds no elements. The check is structural
// (sentinel with no successor), not counter based.
func (q *LinkQueue[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}
