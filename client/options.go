package client

import (
	"log/slog"

	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
)

// Options configure a Client. The zero value is usable.
type Options struct {
	// Logger receives all client logs. When nil the client logs text to
	// stderr at Info, or Debug once EnableDebug(true) is called.
	Logger *slog.Logger

	// Settings defaults to config.DefaultSettings().
	Settings *config.Settings

	// Metrics, when set, receives the client and event cache metrics.
	Metrics *metric.MetricsRegistry
}
