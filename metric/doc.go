// Package metric provides the Prometheus registry used by the MSB client
// and an HTTP server exposing it.
//
// A MetricsRegistry comes with the client metrics (connection state, frames,
// published/cached/discarded events, function calls, configuration updates)
// and Go runtime collectors registered. Components add their own series
// through the MetricsRegistrar methods, keyed by component and metric name
// so a second registration of the same pair is rejected.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	c := client.New(identity, client.Options{Metrics: registry})
//
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go func() {
//		if err := server.Start(ctx); err != nil {
//			log.Printf("metrics server: %v", err)
//		}
//	}()
//
// All metrics live in the "msb" namespace, for example
// msb_events_published_total{event_id="TEMPERATURE"}.
package metric
