package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
)

func TestNewValidatesIdentity(t *testing.T) {
	id := testIdentity()
	id.Token = ""
	_, err := New(id, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	id = testIdentity()
	id.Type = "Robot"
	_, err = New(id, Options{})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestNewDefaults(t *testing.T) {
	c := newTestClient(t, nil)

	s := c.Settings()
	assert.Equal(t, config.DefaultSettings(), s)
	assert.Equal(t, Disconnected, c.State())
	assert.False(t, c.IsConnected())
	assert.False(t, c.IsRegistered())
	assert.Equal(t, testIdentity(), c.Identity())
}

func TestSettersUpdateSettings(t *testing.T) {
	c := newTestClient(t, nil)

	c.EnableDebug(true)
	c.EnableDataFormatValidation(false)
	c.DisableAutoReconnect(true)
	c.SetKeepAlive(true, 2*time.Second)
	c.DisableSockJSFraming(true)
	c.DisableHostnameVerification(true)
	c.DisableEventCache(true)
	c.SetEventCacheSize(5)
	c.SetReconnectInterval(7 * time.Second)

	s := c.Settings()
	assert.True(t, s.Debug)
	assert.False(t, s.Validation)
	assert.False(t, s.AutoReconnect)
	assert.True(t, s.KeepAlive)
	assert.Equal(t, 2000, s.HeartbeatIntervalMs)
	assert.False(t, s.SockJSFraming)
	assert.False(t, s.HostnameVerification)
	assert.False(t, s.EventCache.Enabled)
	assert.Equal(t, 5, s.EventCache.Size)
	assert.Equal(t, 7000, s.ReconnectIntervalMs)
}

func TestSetReconnectIntervalClampsToMinimum(t *testing.T) {
	c := newTestClient(t, nil)

	c.SetReconnectInterval(time.Millisecond)
	assert.Equal(t, int(minReconnectInterval.Milliseconds()), c.Settings().ReconnectIntervalMs)
}

func TestEnableDebugOwnLogger(t *testing.T) {
	c, err := New(testIdentity(), Options{})
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, c.level.Level())
	c.EnableDebug(true)
	assert.Equal(t, slog.LevelDebug, c.level.Level())
	c.EnableDebug(false)
	assert.Equal(t, slog.LevelInfo, c.level.Level())
}

func TestDeclarationsRenderInSelfDescription(t *testing.T) {
	c := newTestClient(t, nil)

	c.CreateComplexDataFormat("Reading")
	require.NoError(t, c.AddProperty("Reading", "value", "float", false))
	require.NoError(t, c.AddProperty("Reading", "unit", "string", false))

	require.NoError(t, c.AddConfigParameter("sampling", 100, "int32"))
	require.NoError(t, c.AddEvent("TEMP", "Temperature", "temp", "Reading", "HIGH", false))
	require.NoError(t, c.AddEventSpec(selfdescription.EventSpec{EventID: "PING", Name: "Ping"}))
	require.NoError(t, c.AddFunction("SWITCH", "Switch", "switch", "boolean", func(map[string]any) {}, false, []string{"PING"}))
	require.NoError(t, c.AddFunctionSpec(selfdescription.FunctionSpec{FunctionID: "RESET", Name: "Reset"}))

	err := c.AddEvent("TEMP", "again", "", "string", nil, false)
	assert.ErrorIs(t, err, errors.ErrDuplicateID)

	sd := c.SelfDescription()
	require.Len(t, sd.Events, 2)
	require.Len(t, sd.Functions, 2)
	assert.Equal(t, 1, sd.Events[0].ID)
	assert.Equal(t, []int{2}, sd.Functions[0].ResponseEvents)
	assert.Equal(t, config.TypeSmartObject, sd.Class)

	v, ok := c.ConfigParameter("sampling")
	require.True(t, ok)
	assert.Equal(t, 100, v)

	rendered, err := json.Marshal(sd)
	require.NoError(t, err)
	assert.Contains(t, string(rendered), `"#/definitions/Reading"`)
}

func TestPublishUnknownEvent(t *testing.T) {
	c := newTestClient(t, nil)

	err := c.Publish("NOPE", WithValue(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownEvent)
	assert.True(t, errors.IsInvalid(err))
}

func TestPublishWhileDisconnectedCachesSnapshot(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddEvent("E1", "Event 1", "no payload", "", nil, false))

	require.NoError(t, c.Publish("E1", WithCached(true)))

	cached := c.CachedEvents()
	require.Len(t, cached, 1)
	assert.Equal(t, "E1", cached[0].EventID)
	assert.Nil(t, cached[0].DataObject)
	assert.NotEmpty(t, cached[0].PostDate)

	raw, err := json.Marshal(cached[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dataObject")
}

func TestPublishCacheDecisions(t *testing.T) {
	testCases := []struct {
		name         string
		cacheEnabled bool
		opts         []PublishOption
		wantCached   int
	}{
		{"cached flag", true, []PublishOption{WithCached(true)}, 1},
		{"bool priority is the cached flag", true, []PublishOption{WithPriority(true)}, 1},
		{"not cached by default", true, nil, 0},
		{"bool priority false", true, []PublishOption{WithPriority(false), WithCached(true)}, 0},
		{"global switch wins", false, []PublishOption{WithCached(true)}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, nil)
			c.DisableEventCache(!tc.cacheEnabled)
			require.NoError(t, c.AddEvent("E", "E", "", "int32", nil, false))

			require.NoError(t, c.Publish("E", append([]PublishOption{WithValue(1)}, tc.opts...)...))
			assert.Len(t, c.CachedEvents(), tc.wantCached)
		})
	}
}

func TestPublishUpdatesImplementation(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddEvent("E", "E", "", "string", "LOW", false))

	require.NoError(t, c.PublishRequest(PublishRequest{
		EventID:       "E",
		Value:         "first",
		Priority:      "HIGH",
		Cached:        true,
		CorrelationID: "corr-1",
		PostDate:      time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, c.Publish("E", WithCached(true)))

	cached := c.CachedEvents()
	require.Len(t, cached, 2)

	assert.Equal(t, "first", cached[0].DataObject)
	assert.Equal(t, selfdescription.PriorityHigh, cached[0].Priority)
	assert.Equal(t, "corr-1", cached[0].CorrelationID)
	stamped, err := time.Parse(time.RFC3339, cached[0].PostDate)
	require.NoError(t, err)
	assert.NotEqual(t, 2000, stamped.Year(), "transmission time wins over the hint")
	assert.True(t, strings.HasSuffix(cached[0].PostDate, "Z"))

	assert.Equal(t, "first", cached[1].DataObject, "value of the previous publish is reused")
	assert.Equal(t, selfdescription.PriorityHigh, cached[1].Priority, "priority is kept")
	assert.Empty(t, cached[1].CorrelationID, "correlation id is cleared")
}

func TestPublishCachesDetachedValue(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddEvent("E", "E", "", "string", nil, true))

	readings := []any{"a", "b"}

	require.NoError(t, c.Publish("E", WithValue(readings), WithCached(true)))
	readings[0] = "mutated"

	cached := c.CachedEvents()
	require.Len(t, cached, 1)
	assert.Equal(t, []any{"a", "b"}, cached[0].DataObject)

	require.NoError(t, c.Publish("E", WithCached(true)))
	cached = c.CachedEvents()
	require.Len(t, cached, 2)
	assert.Equal(t, []any{"a", "b"}, cached[1].DataObject, "reused value is the stored copy")

	device := map[string]any{"name": "press"}
	copied, err := copyValue(device)
	require.NoError(t, err)
	device["name"] = "mutated"
	assert.Equal(t, map[string]any{"name": "press"}, copied)

	scalar, err := copyValue(7)
	require.NoError(t, err)
	assert.Equal(t, 7, scalar, "scalars keep their type")
}

func TestHealthReportsCacheStatistics(t *testing.T) {
	c := newTestClient(t, nil)
	c.SetEventCacheSize(2)
	require.NoError(t, c.AddEvent("E", "E", "", "int32", nil, false))

	for i := range 3 {
		require.NoError(t, c.Publish("E", WithValue(i), WithCached(true)))
	}

	status := c.Health()
	require.NotNil(t, status.Metrics)
	assert.Equal(t, 2, status.Metrics.CachedEvents)
	assert.Equal(t, int64(1), status.Metrics.CacheDrops)
	assert.Equal(t, int64(1), status.Metrics.CacheOverflows)
	assert.InDelta(t, 1.0, status.Metrics.CacheUtilization, 1e-9)
}

func TestPublishIgnoresValueWithoutDataFormat(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddEvent("E", "E", "", "", nil, false))

	require.NoError(t, c.Publish("E", WithValue(42), WithCached(true)))
	cached := c.CachedEvents()
	require.Len(t, cached, 1)
	assert.Nil(t, cached[0].DataObject)
}

func TestPublishInvalidValueIsStillCached(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := New(testIdentity(), Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: registry,
	})
	require.NoError(t, err)
	require.NoError(t, c.AddEvent("E", "E", "", "int32", nil, false))

	require.NoError(t, c.Publish("E", WithValue("Hello"), WithCached(true)))
	assert.Len(t, c.CachedEvents(), 1)

	m := registry.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("E")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsCached))

	require.NoError(t, c.Publish("E", WithValue(3)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDiscarded))
}

func TestEventCacheCapacity(t *testing.T) {
	c := newTestClient(t, nil)
	c.SetEventCacheSize(3)
	require.NoError(t, c.AddEvent("E", "E", "", "int32", nil, false))

	for i := range 4 {
		require.NoError(t, c.Publish("E", WithValue(i), WithCached(true)))
	}
	cached := c.CachedEvents()
	require.Len(t, cached, 3)
	assert.Equal(t, 1, cached[0].DataObject, "oldest evicted first")
	assert.Equal(t, 3, cached[2].DataObject)

	c.SetEventCacheSize(0)
	cached = c.CachedEvents()
	require.Len(t, cached, 1, "size 0 keeps the newest event")
	assert.Equal(t, 3, cached[0].DataObject)
}

func TestValidateEventValue(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddEvent("S", "S", "", "string", nil, false))
	require.NoError(t, c.AddEvent("N", "N", "", "", nil, false))

	ok, err := c.ValidateEventValue("S", "Hello World!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateEventValue("S", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateEventValue("N", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.True(t, ok, "events without a format accept anything")

	_, err = c.ValidateEventValue("X", 1)
	assert.ErrorIs(t, err, errors.ErrUnknownEvent)
}

func TestSetConfigParameterRequiresRegistration(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.AddConfigParameter("p", "TRUE", "boolean"))

	err := c.SetConfigParameter("p", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotRegistered)

	v, _ := c.ConfigParameter("p")
	assert.Equal(t, true, v)
}

func TestAddConfigParameterBoolean(t *testing.T) {
	c := newTestClient(t, nil)

	require.NoError(t, c.AddConfigParameter("p", "TRUE", "boolean"))
	v, ok := c.ConfigParameter("p")
	require.True(t, ok)
	assert.Equal(t, true, v)

	err := c.AddConfigParameter("p2", "TRUE_bug", "boolean")
	assert.ErrorIs(t, err, errors.ErrInvalidParameterValue)
	_, ok = c.ConfigParameter("p2")
	assert.False(t, ok)
}

func TestConnectRejectsInvalidEndpoint(t *testing.T) {
	c := newTestClient(t, nil)

	err := c.Connect(t.Context(), "ftp://localhost:8085")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidEndpoint)
	assert.Equal(t, Disconnected, c.State())

	err = c.Connect(t.Context(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidEndpoint, "no configured url")
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Registered", Registered.String())
	assert.Equal(t, "ClosedPendingReconnect", ClosedPendingReconnect.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}

func TestNotifierOrderAndUnsubscribe(t *testing.T) {
	n := newNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var calls []string
	stopA := n.subscribe(&subscriber{fn: func(StateChange) { calls = append(calls, "a") }})
	n.subscribe(&subscriber{fn: func(StateChange) { calls = append(calls, "b") }})

	ch := make(chan StateChange, 1)
	stopCh := n.subscribe(&subscriber{ch: ch})

	n.publish(StateChange{State: Connected})
	assert.Equal(t, []string{"a", "b"}, calls)
	got := <-ch
	assert.Equal(t, Connected, got.State)
	assert.False(t, got.Time.IsZero())

	stopA()
	stopA()
	stopCh()
	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")

	n.publish(StateChange{State: Registered, Token: protocol.TokenRegistered})
	assert.Equal(t, []string{"a", "b", "b"}, calls)
}

func TestNotifierDropsForSlowSubscriber(t *testing.T) {
	n := newNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ch := make(chan StateChange, 1)
	stop := n.subscribe(&subscriber{ch: ch})
	defer stop()

	n.publish(StateChange{State: Connecting})
	n.publish(StateChange{State: Connected})

	assert.Equal(t, Connecting, (<-ch).State)
	assert.Empty(t, ch)
}

func TestCallbackMayUnsubscribeItself(t *testing.T) {
	n := newNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	count := 0
	var stop func()
	stop = n.subscribe(&subscriber{fn: func(StateChange) {
		count++
		stop()
	}})

	n.publish(StateChange{State: Connecting})
	n.publish(StateChange{State: Connected})
	assert.Equal(t, 1, count)
}
