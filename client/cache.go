package client

import (
	"log/slog"
	"sync/atomic"

	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
	"github.com/research-virtualfortknox/msb-client-websocket-go/pkg/buffer"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
)

// eventCache holds events published while the client is not registered.
// The global switch wins over the per-publish cached flag.
type eventCache struct {
	enabled atomic.Bool
	buf     buffer.Buffer[selfdescription.Implementation]
}

func newEventCache(enabled bool, size int, registry *metric.MetricsRegistry, component string, logger *slog.Logger) (*eventCache, error) {
	opts := []buffer.Option[selfdescription.Implementation]{
		buffer.WithDropCallback[selfdescription.Implementation](func(impl selfdescription.Implementation) {
			logger.Warn("Event cache full, dropping oldest event", "event_id", impl.EventID, "post_date", impl.PostDate)
		}),
	}
	if registry != nil {
		opts = append(opts, buffer.WithMetrics[selfdescription.Implementation](registry, component))
	}
	buf, err := buffer.NewCircularBuffer[selfdescription.Implementation](size, opts...)
	if err != nil {
		return nil, err
	}
	c := &eventCache{buf: buf}
	c.enabled.Store(enabled)
	return c, nil
}

// push stores impl and reports whether it was cached. impl must not share
// mutable values with the caller.
func (c *eventCache) push(impl selfdescription.Implementation) bool {
	if !c.enabled.Load() {
		return false
	}
	c.buf.Write(impl)
	return true
}

// drain sends cached events oldest first, removing each one after it was
// sent, and stops at the first send error.
func (c *eventCache) drain(send func(selfdescription.Implementation) error) (int, error) {
	return c.buf.Drain(send)
}

func (c *eventCache) setEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *eventCache) resize(size int) {
	c.buf.Resize(size)
}

func (c *eventCache) snapshot() []selfdescription.Implementation {
	return c.buf.Snapshot()
}

func (c *eventCache) size() int {
	return c.buf.Size()
}

func (c *eventCache) empty() bool {
	return c.buf.IsEmpty()
}

func (c *eventCache) summary() buffer.StatsSummary {
	return c.buf.Stats().Summary(c.buf.Capacity())
}
