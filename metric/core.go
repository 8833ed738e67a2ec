package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the MSB client metrics.
type Metrics struct {
	ConnectionState prometheus.Gauge
	Connected       prometheus.Gauge
	Registered      prometheus.Gauge
	Reconnects      prometheus.Counter

	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	SendErrors     prometheus.Counter
	ParseErrors    prometheus.Counter

	EventsPublished    *prometheus.CounterVec
	EventsCached       prometheus.Counter
	EventsDiscarded    prometheus.Counter
	ValidationFailures *prometheus.CounterVec

	FunctionCalls *prometheus.CounterVec
	ConfigUpdates prometheus.Counter
}

// NewMetrics creates the client metrics, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=registering, 4=registered, 5=closed pending reconnect)",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "connected",
			Help:      "Websocket connection status (0=down, 1=up)",
		}),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "registered",
			Help:      "Registration status at the broker (0=no, 1=yes)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		}),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Total number of frames sent, by message tag",
		}, []string{"tag"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Total number of inbound messages, by kind",
		}, []string{"kind"}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "frames",
			Name:      "send_errors_total",
			Help:      "Total number of failed frame sends",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "frames",
			Name:      "parse_errors_total",
			Help:      "Total number of inbound messages that could not be parsed",
		}),

		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events sent to the broker",
		}, []string{"event_id"}),
		EventsCached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "cached_total",
			Help:      "Total number of events cached while not registered",
		}),
		EventsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "discarded_total",
			Help:      "Total number of events neither sent nor cached",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "validation_failures_total",
			Help:      "Total number of event values not matching their data format",
		}, []string{"event_id"}),

		FunctionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "functions",
			Name:      "calls_total",
			Help:      "Total number of function calls received, by function and outcome",
		}, []string{"function_id", "status"}),
		ConfigUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "configuration",
			Name:      "updates_total",
			Help:      "Total number of configuration updates received from the broker",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConnectionState,
		m.Connected,
		m.Registered,
		m.Reconnects,
		m.FramesSent,
		m.FramesReceived,
		m.SendErrors,
		m.ParseErrors,
		m.EventsPublished,
		m.EventsCached,
		m.EventsDiscarded,
		m.ValidationFailures,
		m.FunctionCalls,
		m.ConfigUpdates,
	}
}

// RecordState sets the connection gauges.
func (m *Metrics) RecordState(state int, connected, registered bool) {
	m.ConnectionState.Set(float64(state))
	m.Connected.Set(boolGauge(connected))
	m.Registered.Set(boolGauge(registered))
}

// RecordFrameSent counts a sent frame or a failed send.
func (m *Metrics) RecordFrameSent(tag string, err error) {
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.FramesSent.WithLabelValues(tag).Inc()
}

// RecordFunctionCall counts a function call by outcome (handled or unknown).
func (m *Metrics) RecordFunctionCall(functionID, status string) {
	m.FunctionCalls.WithLabelValues(functionID, status).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
