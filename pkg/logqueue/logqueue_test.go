package logqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoLogQueue/pkg/linkmpmc"
	"github.com/i5heu/GoLogQueue/pkg/mutexfifo"
	"github.com/i5heu/GoLogQueue/pkg/segmpmc"
)

// logEvent is the payload used across the tests. Pointer identity doubles as
// a uniqueness check when events are recovered from drops and drains.
type logEvent struct {
	seq int
	msg string
}

func newEvent(seq int) *logEvent {
	return &logEvent{seq: seq, msg: "event"}
}

// =============================================================================
// Construction
// =============================================================================

func TestNewValidation(t *testing.T) {
	assert.PanicsWithValue(t, "logqueue: request limit must be positive", func() {
		New[int](0, OverflowDiscard)
	})
	assert.PanicsWithValue(t, "logqueue: request limit must be positive", func() {
		New[int](-5, OverflowBlock)
	})
	assert.PanicsWithValue(t, "logqueue: unknown overflow policy", func() {
		New[int](8, OverflowPolicy(42))
	})
}

func TestNewDefaults(t *testing.T) {
	q := New[int](16, OverflowGrow)
	require.NotNil(t, q)
	assert.Equal(t, 16, q.RequestLimit())
	assert.Equal(t, OverflowGrow, q.Policy())
	assert.True(t, q.IsEmpty())
	assert.EqualValues(t, 0, q.Count())
}

func TestNilOptionsAreIgnored(t *testing.T) {
	q := New[int](4, OverflowDiscard, WithStore[int](nil), WithParkInterval[int](0))
	q.Enqueue(1, nil)
	batch := q.DequeueBatch(1)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Event)
}

// =============================================================================
// Enqueue semantics
// =============================================================================

func TestEnqueueNilEventPanics(t *testing.T) {
	q := New[any](4, OverflowDiscard)
	assert.PanicsWithValue(t, "logqueue: enqueue of nil event", func() {
		q.Enqueue(nil, nil)
	})
}

func TestEnqueueReportsWasEmpty(t *testing.T) {
	q := New[int](8, OverflowDiscard)

	assert.True(t, q.Enqueue(1, nil), "first enqueue should find the queue empty")
	assert.False(t, q.Enqueue(2, nil))
	assert.False(t, q.Enqueue(3, nil))

	require.Len(t, q.DequeueBatch(8), 3)
	require.True(t, q.IsEmpty())

	assert.True(t, q.Enqueue(4, nil), "enqueue after a full drain should find the queue empty again")
}

func TestFIFOOrder(t *testing.T) {
	q := New[*logEvent](64, OverflowDiscard)

	events := make([]*logEvent, 32)
	for i := range events {
		events[i] = newEvent(i)
		q.Enqueue(events[i], nil)
	}

	batch := q.DequeueBatch(len(events))
	require.Len(t, batch, len(events))
	for i, req := range batch {
		assert.Same(t, events[i], req.Event, "position %d out of order", i)
	}
}

// =============================================================================
// Discard policy
// =============================================================================

func TestDiscardEvictsOldestFirst(t *testing.T) {
	var handled []*logEvent
	q := New[*logEvent](3, OverflowDiscard, WithDropHandler(func(e *logEvent) {
		handled = append(handled, e)
	}))

	var dropped []*logEvent
	onDrop := func(e *logEvent) { dropped = append(dropped, e) }

	events := make([]*logEvent, 5)
	for i := range events {
		events[i] = newEvent(i)
		q.Enqueue(events[i], onDrop)
	}

	// Five enqueues against a limit of three evict exactly the two oldest.
	require.Len(t, dropped, 2)
	assert.Same(t, events[0], dropped[0])
	assert.Same(t, events[1], dropped[1])
	assert.Equal(t, dropped, handled, "queue-level handler should see the same evictions")

	batch := q.DequeueBatch(10)
	require.Len(t, batch, 3)
	for i, req := range batch {
		assert.Same(t, events[i+2], req.Event)
	}
	assert.True(t, q.IsEmpty())
}

func TestDiscardWithoutCallbacks(t *testing.T) {
	q := New[int](2, OverflowDiscard)
	for i := 0; i < 6; i++ {
		q.Enqueue(i, nil)
	}

	batch := q.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, 4, batch[0].Event)
	assert.Equal(t, 5, batch[1].Event)
	assert.EqualValues(t, 4, q.Stats().Dropped)
}

// =============================================================================
// Grow policy
// =============================================================================

func TestGrowNotifiesPastLimit(t *testing.T) {
	var notices []int64
	q := New[int](2, OverflowGrow, WithGrowHandler[int](func(n int64) {
		notices = append(notices, n)
	}))

	q.Enqueue(1, nil)
	q.Enqueue(2, nil)
	assert.Empty(t, notices, "enqueues within the limit must not notify")

	q.Enqueue(3, nil)
	require.Equal(t, []int64{3}, notices, "third enqueue should report a live count of three")

	q.Enqueue(4, nil)
	require.Equal(t, []int64{3, 4}, notices)

	batch := q.DequeueBatch(10)
	require.Len(t, batch, 4, "grow must keep every request")
	for i, req := range batch {
		assert.Equal(t, i+1, req.Event)
	}
	assert.EqualValues(t, 2, q.Stats().GrowNotices)
}

func TestGrowHandlerRaisesLimit(t *testing.T) {
	var q *Queue[int]
	q = New[int](2, OverflowGrow, WithGrowHandler[int](func(n int64) {
		q.SetRequestLimit(int(n) * 2)
	}))

	q.Enqueue(1, nil)
	q.Enqueue(2, nil)
	q.Enqueue(3, nil)
	assert.Equal(t, 6, q.RequestLimit())

	// Below the raised limit again, so no further notices fire.
	q.Enqueue(4, nil)
	q.Enqueue(5, nil)
	assert.EqualValues(t, 1, q.Stats().GrowNotices)
	assert.Len(t, q.DequeueBatch(10), 5)
}

// =============================================================================
// Batch dequeue
// =============================================================================

func TestDequeueBatchEmpty(t *testing.T) {
	q := New[int](4, OverflowDiscard)
	assert.Nil(t, q.DequeueBatch(10))
	assert.EqualValues(t, 0, q.Count())
}

func TestDequeueBatchPartial(t *testing.T) {
	q := New[int](16, OverflowDiscard)
	for i := 0; i < 4; i++ {
		q.Enqueue(i, nil)
	}

	// Asking for more than is present returns only what is there.
	batch := q.DequeueBatch(10)
	require.Len(t, batch, 4)
	for i, req := range batch {
		assert.Equal(t, i, req.Event)
	}
	assert.True(t, q.IsEmpty())
}

func TestDequeueBatchHonorsMaxCount(t *testing.T) {
	q := New[int](16, OverflowDiscard)
	for i := 0; i < 10; i++ {
		q.Enqueue(i, nil)
	}

	batch := q.DequeueBatch(4)
	require.Len(t, batch, 4)
	for i, req := range batch {
		assert.Equal(t, i, req.Event)
	}
	assert.EqualValues(t, 6, q.Count())

	rest := q.DequeueBatch(100)
	require.Len(t, rest, 6)
	assert.Equal(t, 4, rest[0].Event)
}

func TestDequeueBatchPanicsOnBadCount(t *testing.T) {
	q := New[int](4, OverflowDiscard)
	assert.PanicsWithValue(t, "logqueue: batch size must be positive", func() {
		q.DequeueBatch(0)
	})
	assert.PanicsWithValue(t, "logqueue: batch size must be positive", func() {
		q.DequeueBatch(-3)
	})
	assert.PanicsWithValue(t, "logqueue: batch size must be positive", func() {
		q.DequeueBatchInto(nil, 0)
	})
}

func TestDequeueBatchIntoReusesBuffer(t *testing.T) {
	q := New[int](16, OverflowDiscard)
	buf := make([]Request[int], 0, 8)

	for i := 0; i < 5; i++ {
		q.Enqueue(i, nil)
	}
	got := q.DequeueBatchInto(buf, 8)
	require.Len(t, got, 5)
	assert.Equal(t, 8, cap(got), "a batch within capacity should not reallocate")

	for i := 5; i < 8; i++ {
		q.Enqueue(i, nil)
	}
	got = q.DequeueBatchInto(got[:0], 8)
	require.Len(t, got, 3)
	for i, req := range got {
		assert.Equal(t, i+5, req.Event)
	}
}

func TestDequeueBatchIntoAppends(t *testing.T) {
	q := New[int](16, OverflowDiscard)
	q.Enqueue(7, nil)

	dst := []Request[int]{{Event: 99}}
	got := q.DequeueBatchInto(dst, 4)
	require.Len(t, got, 2)
	assert.Equal(t, 99, got[0].Event, "existing entries must be preserved")
	assert.Equal(t, 7, got[1].Event)
}

// =============================================================================
// Clear
// =============================================================================

func TestClearIsIdempotent(t *testing.T) {
	dropped := 0
	q := New[int](8, OverflowDiscard, WithDropHandler(func(int) { dropped++ }))
	for i := 0; i < 5; i++ {
		q.Enqueue(i, func(int) { dropped++ })
	}

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.EqualValues(t, 0, q.Count())
	assert.Zero(t, dropped, "cleared requests must not run drop callbacks")

	q.Clear()
	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.EqualValues(t, 5, q.Stats().Cleared)
}

func TestClearThenReuse(t *testing.T) {
	q := New[int](4, OverflowBlock)
	q.Enqueue(1, nil)
	q.Clear()

	assert.True(t, q.Enqueue(2, nil), "queue should be empty again after Clear")
	batch := q.DequeueBatch(4)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].Event)
}

// =============================================================================
// Limits and introspection
// =============================================================================

func TestSetRequestLimit(t *testing.T) {
	q := New[int](4, OverflowDiscard)
	assert.Equal(t, 4, q.RequestLimit())

	q.SetRequestLimit(9)
	assert.Equal(t, 9, q.RequestLimit())

	assert.PanicsWithValue(t, "logqueue: request limit must be positive", func() {
		q.SetRequestLimit(0)
	})
	assert.PanicsWithValue(t, "logqueue: request limit must be positive", func() {
		q.SetRequestLimit(-1)
	})
}

func TestCountTracksLiveRequests(t *testing.T) {
	q := New[int](8, OverflowDiscard)
	assert.EqualValues(t, 0, q.Count())

	q.Enqueue(1, nil)
	q.Enqueue(2, nil)
	assert.EqualValues(t, 2, q.Count())
	assert.False(t, q.IsEmpty())

	q.DequeueBatch(1)
	assert.EqualValues(t, 1, q.Count())

	q.DequeueBatch(1)
	assert.EqualValues(t, 0, q.Count())
	assert.True(t, q.IsEmpty())
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "discard", OverflowDiscard.String())
	assert.Equal(t, "block", OverflowBlock.String())
	assert.Equal(t, "grow", OverflowGrow.String())
	assert.Equal(t, "unknown", OverflowPolicy(99).String())
}

func TestStatsAccounting(t *testing.T) {
	q := New[int](3, OverflowDiscard)
	for i := 0; i < 5; i++ {
		q.Enqueue(i, nil)
	}
	require.Len(t, q.DequeueBatch(2), 2)
	q.Clear()

	s := q.Stats()
	assert.EqualValues(t, 5, s.Enqueued)
	assert.EqualValues(t, 2, s.Dropped)
	assert.EqualValues(t, 2, s.Drained)
	assert.EqualValues(t, 1, s.Cleared)
	assert.EqualValues(t, 4, s.HighWater, "the fourth and fifth enqueues each saw a live count of four")
}

// =============================================================================
// Storage backends
// =============================================================================

func TestBackends(t *testing.T) {
	backends := []struct {
		name  string
		store Store[Request[int]]
	}{
		{"segmpmc", segmpmc.New[Request[int]]()},
		{"linkmpmc", linkmpmc.New[Request[int]]()},
		{"mutexfifo", mutexfifo.New[Request[int]](16)},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			var dropped []int
			q := New[int](3, OverflowDiscard,
				WithStore[int](backend.store),
				WithDropHandler(func(e int) { dropped = append(dropped, e) }),
			)

			for i := 0; i < 5; i++ {
				q.Enqueue(i, nil)
			}
			assert.Equal(t, []int{0, 1}, dropped)

			batch := q.DequeueBatch(10)
			require.Len(t, batch, 3)
			for i, req := range batch {
				assert.Equal(t, i+2, req.Event)
			}
			assert.True(t, q.IsEmpty())
		})
	}
}
