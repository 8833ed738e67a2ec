// Package health reports whether an MSB client session is usable.
//
// A Status is one of three levels: healthy (registered at the broker),
// degraded (connecting or registering) and unhealthy (disconnected or
// waiting to reconnect). A Monitor keeps the latest Status per named
// component and aggregates them, which the metrics server exposes on
// /health:
//
//	monitor := health.NewMonitor()
//	c.OnStateChange(func(client.StateChange) {
//		monitor.Update("msb-client", c.Health())
//	})
//	server := metric.NewServer(":9090", "/metrics", registry,
//		metric.WithHealth(func() health.Status { return monitor.AggregateHealth("msb-sample") }))
//
// Status messages built with Sanitize carry no broker URLs, addresses or
// credentials.
package health
