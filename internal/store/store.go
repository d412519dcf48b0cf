package store

// Interface is the storage surface shared by all FIFO backends. The test
// bench and the benchmark registry hold backends behind it; the queue core
// declares its own copy so the public package does not leak an internal one.
type Interface[T any] interface {
	// Enqueue appends an element at the tail. Backends are unbounded, so
	// Enqueue never blocks on capacity.
	Enqueue(T)

	// Dequeue removes and returns the oldest element.
	// If the store is empty (no element is available), it returns an empty T
	// and false, otherwise true.
	Dequeue() (T, bool)

	// Len returns how many elements are currently stored. The value is
	// approximate while producers and consumers are in flight.
	Len() int

	// Empty reports whether the store holds no elements at this instant.
	Empty() bool
}
