package logqueue

import "sync/atomic"

// Stats is a point-in-time snapshot of the queue's counters. All fields are
// monotonic; HighWater is the largest live count any enqueue observed.
type Stats struct {
	Enqueued    int64 // requests appended to storage
	Drained     int64 // requests handed to the consumer by batch dequeues
	Dropped     int64 // requests evicted by the discard policy
	GrowNotices int64 // over-limit enqueues seen under the grow policy
	Cleared     int64 // requests removed by Clear
	HighWater   int64 // peak live count
}

// counters is the live backing for Stats.
type counters struct {
	enqueued    atomic.Int64
	drained     atomic.Int64
	dropped     atomic.Int64
	growNotices atomic.Int64
	cleared     atomic.Int64
	highWater   atomic.Int64
}

// noteHighWater raises the peak to n if n exceeds it.
func (c *counters) noteHighWater(n int64) {
	for {
		cur := c.highWater.Load()
		if n <= cur || c.highWater.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Enqueued:    c.enqueued.Load(),
		Drained:     c.drained.Load(),
		Dropped:     c.dropped.Load(),
		GrowNotices: c.growNotices.Load(),
		Cleared:     c.cleared.Load(),
		HighWater:   c.highWater.Load(),
	}
}
