package segmpmc

import (
	"runtime"
	"sync/atomic"
)

const (
	segmentSize      = 256 // slots per ring segment (power of 2)
	spinsBeforeYield = 100 // commit-flag spins before yielding
)

// segSlot is one slot in a ring segment.
type segSlot[T any] struct {
	committed uint32 // set to 1 once value is visible
	value     T
}

// segment is a fixed ring of slots plus the claim cursors.
// Padding keeps the cursors on separate cache lines.
type segment[T any] struct {
	slots      [segmentSize]segSlot[T]
	_pad0      [8]uint64
	enqueuePos uint64 // next slot to claim for writing; runs past segmentSize once sealed
	_pad1      [8]uint64
	dequeuePos uint64 // next slot to claim for reading
	_pad2      [8]uint64
	next       atomic.Pointer[segment[T]]
}

// SegQueue is an unbounded, lock-free, multi-producer/multi-consumer FIFO
// queue built from linked ring segments. Producers claim a slot with a
// fetch-add and publish it with a commit flag; a claim past the end of a
// segment seals that segment and links a fresh one.
type SegQueue[T any] struct {
	_pad0  [8]uint64
	head   atomic.Pointer[segment[T]] // segment being consumed
	_pad1  [8]uint64
	tail   atomic.Pointer[segment[T]] // segment being filled
	_pad2  [8]uint64
	length atomic.Int64
}

// New creates an empty SegQueue with a single segment.
func New[T any]() *SegQueue[T] {
	q := &SegQueue[T]{}
	seg := &segment[T]{}
	q.head.Store(seg)
	q.tail.Store(seg)
	return q
}

// Enqueue appends a value at the tail. It never blocks on capacity; a sealed
// segment is replaced by a fresh one.
func (q *SegQueue[T]) Enqueue(val T) {
	for {
		seg := q.tail.Load()
		pos := atomic.AddUint64(&seg.enqueuePos, 1) - 1
		if pos < segmentSize {
			slot := &seg.slots[pos]
			slot.value = val
			// Publish the value.
			atomic.StoreUint32(&slot.committed, 1)
			q.length.Add(1)
			return
		}
		// The claim ran past the segment: seal it and move the tail forward.
		q.advanceTail(seg)
	}
}

// advanceTail links a successor to the sealed segment (if none exists yet)
// and swings the tail to it. Losing either CAS means another producer helped.
func (q *SegQueue[T]) advanceTail(seg *segment[T]) {
	next := seg.next.Load()
	if next == nil {
		fresh := &segment[T]{}
		if seg.next.CompareAndSwap(nil, fresh) {
			next = fresh
		} else {
			next = seg.next.Load()
		}
	}
	q.tail.CompareAndSwap(seg, next)
}

// Dequeue removes and returns the oldest value.
// If the queue is empty, it returns the zero value and false.
func (q *SegQueue[T]) Dequeue() (T, bool) {
	for {
		seg := q.head.Load()
		for {
			pos := atomic.LoadUint64(&seg.dequeuePos)
			if pos >= segmentSize {
				// Segment fully consumed; advance the head below.
				break
			}
			claimed := atomic.LoadUint64(&seg.enqueuePos)
			if claimed > segmentSize {
				claimed = segmentSize
			}
			if pos >= claimed {
				// No claimed slot remains anywhere: a later segment only
				// exists once this one is sealed.
				var zero T
				return zero, false
			}
			if atomic.CompareAndSwapUint64(&seg.dequeuePos, pos, pos+1) {
				slot := &seg.slots[pos]
				// The owning producer may still be writing; wait for the
				// commit flag.
				for spins := 0; atomic.LoadUint32(&slot.committed) == 0; spins++ {
					if spins > spinsBeforeYield {
						runtime.Gosched()
					}
				}
				val := slot.value
				var zero T
				slot.value = zero
				q.length.Add(-1)
				return val, true
			}
		}
		next := seg.next.Load()
		if next == nil {
			var zero T
			return zero, false
		}
		q.head.CompareAndSwap(seg, next)
	}
}

// Len returns an approximate count of stored elements. The counter trails
// the slot claims, so it is clamped at zero.
func (q *SegQueue[T]) Len() int {
	if n := q.length.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Empty reports whether the queue holds no elements.
func (q *SegQueue[T]) Empty() bool {
	return q.length.Load() <= 0
}
