package mutexfifo

import (
	"sync"
)

const minCapacity = 64 // smallest backing ring handed out by New

// MutexFIFO is an unbounded FIFO queue guarded by a single mutex. The backing
// ring doubles whenever it fills, so Enqueue never blocks on capacity. It
// trades the lock-free backends' throughput for exact accounting.
type MutexFIFO[T any] struct {
	mu    sync.Mutex
	buf   []T
	mask  int // len(buf) - 1 (len is a power of 2)
	head  int // index of the oldest element
	count int
}

// New creates a MutexFIFO with at least the given initial capacity
// (rounded up to a power of 2).
func New[T any](capacity int) *MutexFIFO[T] {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity&(capacity-1) != 0 {
		capPow := 1
		for capPow < capacity {
			capPow <<= 1
		}
		capacity = capPow
	}
	return &MutexFIFO[T]{
		buf:  make([]T, capacity),
		mask: capacity - 1,
	}
}

// Enqueue appends a value at the tail, doubling the ring when it is full.
func (q *MutexFIFO[T]) Enqueue(val T) {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)&q.mask] = val
	q.count++
	q.mu.Unlock()
}

// grow doubles the ring and straightens the wrapped contents.
// The caller must hold mu.
func (q *MutexFIFO[T]) grow() {
	bigger := make([]T, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		bigger[i] = q.buf[(q.head+i)&q.mask]
	}
	q.buf = bigger
	q.mask = len(bigger) - 1
	q.head = 0
}

// Dequeue removes and returns the oldest value.
// If the queue is empty, it returns the zero value and false.
func (q *MutexFIFO[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	val := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // drop the reference so the GC can collect it
	q.head = (q.head + 1) & q.mask
	q.count--
	q.mu.Unlock()
	return val, true
}

// Len returns the exact count of stored elements.
func (q *MutexFIFO[T]) Len() int {
	q.mu.Lock()
	n := q.count
	q.mu.Unlock()
	return n
}

// Empty reports whether the queue holds no elements.
func (q *MutexFIFO[T]) Empty() bool {
	return q.Len() == 0
}
