package buffer

import (
	"sync"
	"sync/atomic"
)

// Statistics counts buffer operations. It is always on and needs no
// metrics registry.
type Statistics struct {
	// Atomic counters for thread-safe updates
	writes    int64
	removals  int64
	overflows int64
	drops     int64
	drains    int64

	mu          sync.RWMutex
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Write records a buffer write operation.
func (s *Statistics) Write() {
	atomic.AddInt64(&s.writes, 1)
}

// Remove records an item removed after it was drained.
func (s *Statistics) Remove() {
	atomic.AddInt64(&s.removals, 1)
}

// Overflow records a write into a full buffer.
func (s *Statistics) Overflow() {
	atomic.AddInt64(&s.overflows, 1)
}

// Drop records an item lost to eviction or shrinking.
func (s *Statistics) Drop() {
	atomic.AddInt64(&s.drops, 1)
}

// Drain records an item handed out by Drain and acknowledged by the sender.
func (s *Statistics) Drain() {
	atomic.AddInt64(&s.drains, 1)
}

// UpdateSize updates the current buffer size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Writes returns the total number of write operations.
func (s *Statistics) Writes() int64 {
	return atomic.LoadInt64(&s.writes)
}

// Removals returns the number of drained items removed from the buffer.
func (s *Statistics) Removals() int64 {
	return atomic.LoadInt64(&s.removals)
}

// Overflows returns the total number of overflow events.
func (s *Statistics) Overflows() int64 {
	return atomic.LoadInt64(&s.overflows)
}

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 {
	return atomic.LoadInt64(&s.drops)
}

// Drains returns the number of items successfully drained.
func (s *Statistics) Drains() int64 {
	return atomic.LoadInt64(&s.drains)
}

// CurrentSize returns the current number of items in the buffer.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of items the buffer has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// DropRate returns the fraction of writes that lost an item (0.0 to 1.0).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	if writes == 0 {
		return 0.0
	}
	return float64(s.Drops()) / float64(writes)
}

// StatsSummary is a point-in-time copy of the statistics.
type StatsSummary struct {
	Writes      int64   `json:"writes"`
	Removals    int64   `json:"removals"`
	Overflows   int64   `json:"overflows"`
	Drops       int64   `json:"drops"`
	Drains      int64   `json:"drains"`
	CurrentSize int64   `json:"current_size"`
	MaxSize     int64   `json:"max_size"`
	DropRate    float64 `json:"drop_rate"`
	Utilization float64 `json:"utilization"`
}

// Summary returns a snapshot of all statistics. Utilization is the current
// size as a fraction of capacity.
func (s *Statistics) Summary(capacity int) StatsSummary {
	size := s.CurrentSize()
	utilization := 0.0
	if capacity > 0 {
		utilization = float64(size) / float64(capacity)
	}
	return StatsSummary{
		Writes:      s.Writes(),
		Removals:    s.Removals(),
		Overflows:   s.Overflows(),
		Drops:       s.Drops(),
		Drains:      s.Drains(),
		CurrentSize: size,
		MaxSize:     s.MaxSize(),
		DropRate:    s.DropRate(),
		Utilization: utilization,
	}
}
