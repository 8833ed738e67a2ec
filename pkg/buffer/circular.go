package buffer

import (
	"sync"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// circularBuffer is a thread-safe ring that evicts its oldest item on
// overflow.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *bufferMetrics
	opts     *bufferOptions[T]
	popped   uint64 // items ever removed from the tail
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
		metrics.updateSize(0, capacity)
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item, evicting the oldest one when the buffer is full.
func (cb *circularBuffer[T]) Write(item T) {
	dropped, lost := cb.write(item)
	if lost && cb.opts.dropCallback != nil {
		cb.opts.dropCallback(dropped)
	}
}

func (cb *circularBuffer[T]) write(item T) (dropped T, lost bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == cb.capacity {
		cb.stats.Overflow()
		cb.stats.Drop()
		if cb.metrics != nil {
			cb.metrics.recordOverflow()
			cb.metrics.recordDrop()
		}
		dropped, lost = cb.popLocked(), true
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.Write()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.recordWrite(cb.size, cb.capacity)
	}
	return dropped, lost
}

// popLocked removes the oldest item. Caller holds cb.mu and size > 0.
func (cb *circularBuffer[T]) popLocked() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	cb.popped++
	return item
}

// Drain sends items oldest first. The lock is not held while send runs, so
// writes may happen concurrently; items written during a drain are drained
// too. An item evicted by overflow while it was being sent is not removed
// a second time.
func (cb *circularBuffer[T]) Drain(send func(T) error) (int, error) {
	sent := 0
	for {
		cb.mu.RLock()
		if cb.size == 0 {
			cb.mu.RUnlock()
			return sent, nil
		}
		item := cb.items[cb.tail]
		mark := cb.popped
		cb.mu.RUnlock()

		if err := send(item); err != nil {
			return sent, err
		}
		sent++
		cb.stats.Drain()

		cb.mu.Lock()
		if cb.popped == mark && cb.size > 0 {
			cb.popLocked()
			cb.stats.Remove()
			cb.stats.UpdateSize(int64(cb.size))
			if cb.metrics != nil {
				cb.metrics.recordRemoval(cb.size, cb.capacity)
			}
		}
		cb.mu.Unlock()
	}
}

// Snapshot returns a copy of the buffered items, oldest first.
func (cb *circularBuffer[T]) Snapshot() []T {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	out := make([]T, cb.size)
	for i := 0; i < cb.size; i++ {
		out[i] = cb.items[(cb.tail+i)%cb.capacity]
	}
	return out
}

// Resize rebuilds the ring with the new capacity, keeping the newest items.
func (cb *circularBuffer[T]) Resize(capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	cb.notifyDropped(cb.resize(capacity))
}

func (cb *circularBuffer[T]) resize(capacity int) []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if capacity == cb.capacity {
		return nil
	}

	var dropped []T
	for cb.size > capacity {
		dropped = append(dropped, cb.popLocked())
		cb.stats.Drop()
		if cb.metrics != nil {
			cb.metrics.recordDrop()
		}
	}

	items := make([]T, capacity)
	for i := 0; i < cb.size; i++ {
		items[i] = cb.items[(cb.tail+i)%cb.capacity]
	}
	cb.items = items
	cb.capacity = capacity
	cb.tail = 0
	cb.head = cb.size % capacity

	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
	return dropped
}

func (cb *circularBuffer[T]) notifyDropped(items []T) {
	if cb.opts.dropCallback == nil {
		return
	}
	for _, item := range items {
		cb.opts.dropCallback(item)
	}
}

// Size returns the current number of items.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// Capacity returns the maximum number of items.
func (cb *circularBuffer[T]) Capacity() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.capacity
}

// IsEmpty reports whether the buffer holds no items.
func (cb *circularBuffer[T]) IsEmpty() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == 0
}

// Stats returns buffer statistics.
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}
