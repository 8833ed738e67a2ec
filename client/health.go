package client

import (
	"github.com/research-virtualfortknox/msb-client-websocket-go/health"
)

// healthComponent names the client in health reports.
const healthComponent = "msb-client"

// Health reports the session: healthy when registered, degraded while
// connecting or registering, unhealthy otherwise. The message carries the
// sanitized cause of the last connection loss.
func (c *Client) Health() health.Status {
	c.mu.Lock()
	state := c.state
	since := c.stateSince
	cause := c.lastError
	reconnects := c.reconnects
	c.mu.Unlock()

	message := state.String()
	if cause != "" && state != Registered {
		message += ": " + health.Sanitize(cause)
	}

	var status health.Status
	switch state {
	case Registered:
		status = health.NewHealthy(healthComponent, message)
	case Connecting, Connected, Registering:
		status = health.NewDegraded(healthComponent, message)
	default:
		status = health.NewUnhealthy(healthComponent, message)
	}
	cache := c.cache.summary()
	return status.WithMetrics(&health.Metrics{
		State:            state.String(),
		Since:            since,
		Reconnects:       reconnects,
		CachedEvents:     int(cache.CurrentSize),
		CacheDrops:       cache.Drops,
		CacheOverflows:   cache.Overflows,
		CacheUtilization: cache.Utilization,
	})
}
