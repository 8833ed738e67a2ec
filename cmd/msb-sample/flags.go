package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	URL             string
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	PublishInterval time.Duration
	ShutdownTimeout time.Duration
	ShowVersion     bool
	PrintSelfDesc   bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("MSB_SAMPLE_CONFIG", ""),
		"Path to application.properties or yaml file; generated identity when empty (env: MSB_SAMPLE_CONFIG)")

	flag.StringVar(&cfg.URL, "url",
		getEnv("MSB_SAMPLE_URL", ""),
		"Broker URL, overrides msb.url (env: MSB_SAMPLE_URL)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MSB_SAMPLE_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: MSB_SAMPLE_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MSB_SAMPLE_LOG_FORMAT", "text"),
		"Log format: json, text (env: MSB_SAMPLE_LOG_FORMAT)")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("MSB_SAMPLE_METRICS_ADDR", ":9090"),
		"Prometheus listen address, empty to disable (env: MSB_SAMPLE_METRICS_ADDR)")

	flag.DurationVar(&cfg.PublishInterval, "publish-interval",
		getEnvDuration("MSB_SAMPLE_PUBLISH_INTERVAL", 5*time.Second),
		"Interval between sample events (env: MSB_SAMPLE_PUBLISH_INTERVAL)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MSB_SAMPLE_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: MSB_SAMPLE_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.PrintSelfDesc, "print-self-description", false,
		"Print the self-description and exit")

	flag.Parse()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.PublishInterval <= 0 {
		return fmt.Errorf("publish interval must be positive: %s", cfg.PublishInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
