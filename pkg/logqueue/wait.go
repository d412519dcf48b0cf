package logqueue

import (
	"runtime"
	"sync"
	"time"
)

const (
	spinIterations = 100 // limit re-checks before parking
	spinLoop       = 32  // busy iterations per early spin round
	spinYieldAfter = 10  // spin rounds before yielding the processor

	defaultParkInterval = 100 * time.Millisecond
)

// gate is the park/wake point for producers stalled on the request limit.
// It pairs a mutex with a broadcast channel that is closed and replaced on
// every wake, which provides the timed wait that sync.Cond lacks.
type gate struct {
	mu   sync.Mutex
	wake chan struct{}
}

func newGate() *gate {
	return &gate{wake: make(chan struct{})}
}

// sequence returns the channel the next broadcast will close. Waiters grab
// it before re-checking their condition so no wake can slip past them.
func (g *gate) sequence() <-chan struct{} {
	g.mu.Lock()
	ch := g.wake
	g.mu.Unlock()
	return ch
}

// broadcast wakes every parked producer.
func (g *gate) broadcast() {
	g.mu.Lock()
	g.broadcastLocked()
	g.mu.Unlock()
}

// broadcastLocked wakes every parked producer. The caller must hold mu.
func (g *gate) broadcastLocked() {
	close(g.wake)
	g.wake = make(chan struct{})
}

// pause burns a few cycles on early rounds and yields on later ones.
func pause(round int) {
	if round < spinYieldAfter {
		for i := 0; i < spinLoop; i++ {
			// Intentionally empty.
		}
		return
	}
	runtime.Gosched()
}

// waitBelowLimit stalls the calling producer until the live count is at or
// below the request limit, spinning first and parking afterwards. It returns
// the count observation that satisfied the limit.
func (q *Queue[T]) waitBelowLimit() int64 {
	// Phase one: spin. Most stalls resolve within a drain batch or two, so a
	// bounded spin skips the parking round trip. The limit is re-read every
	// round because SetRequestLimit may raise it mid-wait.
	for round := 0; round < spinIterations; round++ {
		if n := q.count.Load(); n <= q.limit.Load() {
			return n
		}
		pause(round)
	}

	// Phase two: park with a bounded interval. A drain that loses the gate
	// race skips its broadcast, so every park is timed; a missed wake costs
	// at most one interval.
	timer := time.NewTimer(q.parkInterval)
	defer timer.Stop()
	for {
		wake := q.gate.sequence()
		if n := q.count.Load(); n <= q.limit.Load() {
			return n
		}
		select {
		case <-wake:
		case <-timer.C:
			timer.Reset(q.parkInterval)
		}
	}
}
