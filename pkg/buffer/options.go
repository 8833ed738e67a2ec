package buffer

import (
	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
)

// Option configures a buffer.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	dropCallback DropCallback[T]

	// metricsReg is optional; buffer stats are also exported when set
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithMetrics exports buffer statistics to registry under the component
// label prefix. A nil registry or empty prefix disables export.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback sets a callback for items the buffer loses.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
