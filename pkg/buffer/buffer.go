package buffer

// Buffer is a bounded FIFO of items of type T. A write into a full buffer
// evicts the oldest item.
type Buffer[T any] interface {
	// Write appends an item, evicting the oldest one when the buffer is full.
	Write(item T)

	// Drain hands items to send oldest first and removes each one after
	// send returns nil. It stops at the first error, leaving that item and
	// everything after it buffered, and returns how many items were sent.
	Drain(send func(T) error) (int, error)

	// Snapshot returns the buffered items oldest first without removing them.
	Snapshot() []T

	// Resize changes the capacity. Shrinking keeps the newest items.
	Resize(capacity int)

	// Size returns the current number of items.
	Size() int

	// Capacity returns the maximum number of items.
	Capacity() int

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Stats returns the buffer statistics.
	Stats() *Statistics
}

// DropCallback is called with every item lost to eviction or a shrinking
// Resize.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a circular buffer. A capacity below 1 is raised
// to 1, so such a buffer always holds the newest item.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
