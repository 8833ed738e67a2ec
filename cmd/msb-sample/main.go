// Package main runs a sample SmartObject against an MSB broker: it declares
// a set of events and functions, registers, and publishes sample events
// until interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/research-virtualfortknox/msb-client-websocket-go/client"
	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/health"
	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "msb-sample"
)

const defaultURL = "ws://ws.msb.edu.virtualfortknox.de"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.URL != "" {
		cfg.Settings.URL = cliCfg.URL
	}
	if cfg.Settings.URL == "" {
		cfg.Settings.URL = defaultURL
	}
	logger.Info("Starting MSB sample", "version", Version, "config", cfg.String())

	registry := metric.NewMetricsRegistry()
	c, err := client.New(cfg.Identity, client.Options{
		Logger:   logger,
		Settings: &cfg.Settings,
		Metrics:  registry,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	c.EnableDataFormatValidation(true)
	c.DisableAutoReconnect(false)
	c.SetReconnectInterval(10 * time.Second)
	c.SetEventCacheSize(1000)

	if err := declare(c, logger); err != nil {
		return fmt.Errorf("declare self-description: %w", err)
	}

	if cliCfg.PrintSelfDesc {
		out, err := json.MarshalIndent(c.SelfDescription(), "", "    ")
		if err != nil {
			return fmt.Errorf("render self-description: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := health.NewMonitor()
	monitor.Update("msb-client", c.Health())
	c.OnStateChange(func(change client.StateChange) {
		logger.Info("Connection state", "state", change.State.String(), "token", change.Token)
		monitor.Update("msb-client", c.Health())
	})

	if err := c.Connect(ctx, ""); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.Register()

	g, gctx := errgroup.WithContext(ctx)
	if cliCfg.MetricsAddr != "" {
		server := metric.NewServer(cliCfg.MetricsAddr, "/metrics", registry,
			metric.WithHealth(func() health.Status { return monitor.AggregateHealth(appName) }))
		g.Go(func() error {
			return server.Start(gctx)
		})
	}
	g.Go(func() error {
		publishLoop(gctx, c, logger, cliCfg.PublishInterval)
		return nil
	})

	err = g.Wait()
	shutdown(c, logger, cliCfg.ShutdownTimeout)
	return err
}

// loadConfig reads the identity file, or generates an identity when no
// file is given and none is found in the working directory.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err != nil {
			id := uuid.NewString()
			return &config.Config{
				Identity: config.Identity{
					Type:        config.TypeSmartObject,
					UUID:        id,
					Name:        "SmartObject " + id,
					Description: "SmartObject Desc " + id,
					Token:       id[:7],
				},
				Settings: config.DefaultSettings(),
			}, nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func publishLoop(ctx context.Context, c *client.Client, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.IsRegistered() {
				logger.Info("Client not registered on MSB")
				continue
			}
			publish(c, logger, "SIMPLE_EVENT1", client.WithValue("Hello World!"))
			publish(c, logger, "EVENT1", client.WithValue(fmt.Sprint(50+rand.IntN(50))), client.WithCached(true))
		}
	}
}

func publish(c *client.Client, logger *slog.Logger, eventID string, opts ...client.PublishOption) {
	if err := c.Publish(eventID, opts...); err != nil {
		logger.Error("Publish failed", "event_id", eventID, "error", err)
	}
}

func shutdown(c *client.Client, logger *slog.Logger, timeout time.Duration) {
	logger.Info("Shutting down")
	c.Disconnect()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("Client goroutines still running after shutdown timeout", "timeout", timeout)
	}
}
