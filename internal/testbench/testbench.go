package testbench

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoLogQueue/internal/store"
	"github.com/i5heu/GoLogQueue/pkg/logqueue"
)

// Config sets the concurrency of a run: how many producers, how many
// consumers.
type Config struct {
	NumProducers int
	NumConsumers int
}

// RunTimedTest hammers a raw storage backend for the given duration and
// measures how many values were actually enqueued and dequeued in that
// window. Once the window closes, producers stop and consumers drain
// whatever is left. Returns the totals and the actual elapsed time.
func RunTimedTest[T any, S store.Interface[T]](
	s S,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64

	start := time.Now()

	var valueIndex int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)

	// Flipped to 1 when the test window expires.
	var productionDone int32

	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&valueIndex, 1) - 1
				s.Enqueue(valueGenerator(int(idx)))
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	// Flipped to 1 once all producers have returned; consumers then finish
	// their final drain and exit.
	var drainDone int32

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			for {
				if atomic.LoadInt32(&drainDone) == 1 {
					for {
						if _, ok := s.Dequeue(); !ok {
							return
						}
						atomic.AddInt64(&totalConsumed, 1)
					}
				}
				if _, ok := s.Dequeue(); ok {
					atomic.AddInt64(&totalConsumed, 1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	<-ctx.Done()
	prodWg.Wait()
	atomic.StoreInt32(&drainDone, 1)
	consWg.Wait()

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}

// RunPolicyTest drives a policy queue the way a logging pipeline would:
// producers enqueue single events for the given duration while consumers
// pull batches of up to batchSize. Producers stalled by the block policy are
// released by the ongoing drains, so the run terminates under every policy.
// Returns enqueue calls made, events delivered to consumers, events evicted
// by the discard policy, and the actual elapsed time.
func RunPolicyTest[T any](
	q *logqueue.Queue[T],
	cfg Config,
	testDuration time.Duration,
	batchSize int,
	valueGenerator func(int) T,
) (produced int64, consumed int64, dropped int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64

	start := time.Now()

	var valueIndex int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)

	var productionDone int32

	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&valueIndex, 1) - 1
				q.Enqueue(valueGenerator(int(idx)), nil)
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var drainDone int32

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			buf := make([]logqueue.Request[T], 0, batchSize)
			for {
				if atomic.LoadInt32(&drainDone) == 1 {
					for {
						buf = q.DequeueBatchInto(buf[:0], batchSize)
						if len(buf) == 0 {
							return
						}
						atomic.AddInt64(&totalConsumed, int64(len(buf)))
					}
				}
				buf = q.DequeueBatchInto(buf[:0], batchSize)
				if len(buf) > 0 {
					atomic.AddInt64(&totalConsumed, int64(len(buf)))
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	<-ctx.Done()

	// Parked producers only notice the expired window after a drain releases
	// them, so consumers keep running until every producer has returned.
	prodWg.Wait()
	atomic.StoreInt32(&drainDone, 1)
	consWg.Wait()

	elapsed = time.Since(start)
	produced = atomic.LoadInt64(&totalProduced)
	consumed = atomic.LoadInt64(&totalConsumed)
	dropped = q.Stats().Dropped
	return produced, consumed, dropped, elapsed
}
