// Package buffer provides a thread-safe bounded FIFO that evicts its oldest
// item on overflow, with always-on statistics and optional Prometheus
// metrics.
//
// The MSB client keeps events published while it is not registered in one of
// these buffers and drains them once the broker acknowledges registration.
//
//	cache, err := buffer.NewCircularBuffer[Entry](1000,
//		buffer.WithMetrics[Entry](registry, "event_cache"),
//	)
//
//	cache.Write(entry) // evicts the oldest entry when full
//
//	sent, err := cache.Drain(func(e Entry) error {
//		return conn.Send(e) // an error stops the drain, e stays buffered
//	})
//
// A capacity below 1 is raised to 1, so a buffer of "size 0" still keeps
// the newest item.
//
// # Resizing
//
// Resize changes the capacity in place. Shrinking evicts the oldest items
// and reports them to the drop callback.
//
// # Observability
//
// Statistics are always collected and available through Stats(), with
// Summary giving a copy for health reports. WithMetrics additionally
// exports writes, removals, overflows, drops, size and utilization
// to a metric.MetricsRegistry under a component label. Drop callbacks run
// after the buffer lock is released, so they may call back into the buffer.
package buffer
