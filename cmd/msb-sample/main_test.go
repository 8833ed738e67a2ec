package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-virtualfortknox/msb-client-websocket-go/client"
	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/testutil"
)

func TestDeclareSampleSelfDescription(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := client.New(cfg.Identity, client.Options{Logger: logger, Settings: &cfg.Settings})
	require.NoError(t, err)
	require.NoError(t, declare(c, logger))

	sd := c.SelfDescription()
	assert.Len(t, sd.Events, 10)
	assert.Len(t, sd.Functions, 6)
	assert.Len(t, sd.Configuration.Parameters, 3)

	for _, fn := range sd.Functions {
		if fn.FunctionID == "function4" {
			assert.Equal(t, []int{5, 6}, fn.ResponseEvents)
		}
	}
}

func TestSampleComplexEventFormat(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := client.New(cfg.Identity, client.Options{Logger: logger, Settings: &cfg.Settings})
	require.NoError(t, err)
	require.NoError(t, declare(c, logger))

	raw, err := json.Marshal(c.SelfDescription())
	require.NoError(t, err)

	var doc struct {
		Events []struct {
			EventID    string         `json:"eventId"`
			DataFormat map[string]any `json:"dataFormat"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	want := map[string]any{
		"dataObject": map[string]any{"type": "object", "$ref": "#/definitions/ComplexObject1"},
		"ComplexObject1": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"megaprop": map[string]any{"$ref": "#/definitions/ComplexObject2"},
			},
		},
		"ComplexObject2": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"superprop": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "integer", "format": "int32"},
				},
			},
		},
	}

	for _, ev := range doc.Events {
		if ev.EventID != "COMPLEX_EVENT" {
			continue
		}
		if diff := cmp.Diff(want, ev.DataFormat); diff != "" {
			t.Errorf("COMPLEX_EVENT data format mismatch (-want +got):\n%s", diff)
		}
		return
	}
	t.Fatal("COMPLEX_EVENT not declared")
}

func TestLoadConfigGeneratesIdentity(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.TypeSmartObject, cfg.Identity.Type)
	assert.NoError(t, cfg.Identity.Validate())
	assert.Equal(t, cfg.Identity.UUID[:7], cfg.Identity.Token)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.properties")
	require.NoError(t, os.WriteFile(path, []byte(`msb.type=Application
msb.uuid=0d5a8ed4-8a7c-4d4d-9d57-3a51e3e8f0a1
msb.name=Sample App
msb.description=from file
msb.token=0d5a8ed
msb.url=ws://localhost:8085
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.TypeApplication, cfg.Identity.Type)
	assert.Equal(t, "Sample App", cfg.Identity.Name)
	assert.Equal(t, "ws://localhost:8085", cfg.Settings.URL)
}

func TestValidateFlags(t *testing.T) {
	valid := &CLIConfig{LogLevel: "info", LogFormat: "text", PublishInterval: 1}
	assert.NoError(t, validateFlags(valid))

	bad := *valid
	bad.LogLevel = "verbose"
	assert.Error(t, validateFlags(&bad))

	bad = *valid
	bad.ConfigPath = filepath.Join(t.TempDir(), "missing.properties")
	assert.Error(t, validateFlags(&bad))
}

func TestSampleAgainstBroker(t *testing.T) {
	broker := testutil.NewBroker(t, true)
	cfg, err := loadConfig("")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := client.New(cfg.Identity, client.Options{Logger: logger, Settings: &cfg.Settings})
	require.NoError(t, err)
	require.NoError(t, declare(c, logger))

	require.NoError(t, c.Connect(t.Context(), broker.URL()))
	c.Register()
	require.Eventually(t, c.IsRegistered, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		publishLoop(ctx, c, logger, 20*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return len(broker.Events()) >= 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-loopDone

	ids := map[string]bool{}
	for _, ev := range broker.Events() {
		ids[ev["eventId"].(string)] = true
	}
	assert.True(t, ids["SIMPLE_EVENT1"])
	assert.True(t, ids["EVENT1"])

	before := len(broker.Events())
	broker.Send(`C {"functionId":"functionWithResponse","functionParameters":{"dataObject":"ping"},"correlationId":"corr-1"}`)
	require.Eventually(t, func() bool { return len(broker.Events()) > before }, 3*time.Second, 10*time.Millisecond)
	response := broker.Events()[before]
	assert.Equal(t, "EVENT1", response["eventId"])
	assert.Equal(t, "ping", response["dataObject"])
	assert.Equal(t, "corr-1", response["correlationId"])

	shutdown(c, logger, 5*time.Second)
	assert.False(t, c.IsConnected())
}
