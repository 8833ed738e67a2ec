package client

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
	"github.com/research-virtualfortknox/msb-client-websocket-go/metric"
	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
	"github.com/research-virtualfortknox/msb-client-websocket-go/transport"
	"github.com/research-virtualfortknox/msb-client-websocket-go/validation"
)

// registerPollInterval is how often Register checks for a connection it
// can register on.
const registerPollInterval = 100 * time.Millisecond

// minReconnectInterval is a variable so tests can reconnect quickly.
var minReconnectInterval = config.MinReconnectInterval

// Client is a connection to one MSB broker on behalf of one SmartObject or
// Application. All methods are safe for concurrent use.
type Client struct {
	identity  config.Identity
	logger    *slog.Logger
	level     *slog.LevelVar
	metrics   *metric.Metrics
	builder   *dataformat.Builder
	registry  *selfdescription.Registry
	validator *validation.Validator
	cache     *eventCache
	notifier  *notifier

	mu       sync.Mutex
	settings config.Settings
	state    ConnectionState
	conn     *transport.Conn
	endpoint string
	framing  bool

	stateSince time.Time
	lastError  string
	reconnects int64

	userDisconnect bool
	reconnecting   bool
	reconnectTimer *time.Timer
	registerCancel context.CancelFunc

	// session increases with every Connect and Disconnect; a dial only
	// acts on the client while its session is current.
	session   uint64
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a client for identity. Nothing is sent until Connect and
// Register are called.
func New(identity config.Identity, opts Options) (*Client, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	settings := config.DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	level := new(slog.LevelVar)
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	logger = logger.With("component", "msb-client", "uuid", identity.UUID)
	if settings.Debug {
		level.Set(slog.LevelDebug)
	}

	var metrics *metric.Metrics
	if opts.Metrics != nil {
		metrics = opts.Metrics.CoreMetrics()
	}

	cache, err := newEventCache(settings.EventCache.Enabled, settings.EventCache.Size, opts.Metrics,
		"event_cache_"+identity.UUID, logger)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "New", "create event cache")
	}

	builder := dataformat.NewBuilder(logger)
	c := &Client{
		identity:   identity,
		logger:     logger,
		level:      level,
		metrics:    metrics,
		builder:    builder,
		registry:   selfdescription.NewRegistry(identity, builder, logger),
		validator:  validation.NewValidator(logger),
		cache:      cache,
		notifier:   newNotifier(logger),
		settings:   settings,
		stateSince: time.Now(),
	}
	c.settings.ReconnectIntervalMs = int(c.clampReconnectInterval(settings.ReconnectInterval()).Milliseconds())
	c.recordState()
	return c, nil
}

// Identity returns the identity the client registers with.
func (c *Client) Identity() config.Identity {
	return c.identity
}

// Settings returns a copy of the current settings.
func (c *Client) Settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// EnableDebug switches debug logging for the client's own logger. It has
// no effect on a logger passed in Options.
func (c *Client) EnableDebug(enabled bool) {
	c.mu.Lock()
	c.settings.Debug = enabled
	c.mu.Unlock()
	if enabled {
		c.level.Set(slog.LevelDebug)
	} else {
		c.level.Set(slog.LevelInfo)
	}
}

// EnableDataFormatValidation switches validation of published values.
// Validation only logs mismatches; events are sent anyway.
func (c *Client) EnableDataFormatValidation(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Validation = enabled
}

// DisableAutoReconnect stops (true) or resumes (false) reconnecting after
// the connection is lost.
func (c *Client) DisableAutoReconnect(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.AutoReconnect = !disabled
}

// SetReconnectInterval sets the delay before a reconnect. Values below
// three seconds are raised to three seconds.
func (c *Client) SetReconnectInterval(interval time.Duration) {
	interval = c.clampReconnectInterval(interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.ReconnectIntervalMs = int(interval.Milliseconds())
}

func (c *Client) clampReconnectInterval(interval time.Duration) time.Duration {
	if interval < minReconnectInterval {
		c.logger.Warn("Reconnect interval below minimum, using minimum",
			"requested", interval, "minimum", minReconnectInterval)
		return minReconnectInterval
	}
	return interval
}

// SetKeepAlive switches the client-side heartbeat. It applies from the next
// connection on.
func (c *Client) SetKeepAlive(enabled bool, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.KeepAlive = enabled
	if interval > 0 {
		c.settings.HeartbeatIntervalMs = int(interval.Milliseconds())
	}
}

// DisableSockJSFraming switches the SockJS framing off (true) or on
// (false). It applies from the next connection on.
func (c *Client) DisableSockJSFraming(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.SockJSFraming = !disabled
}

// DisableHostnameVerification accepts any broker certificate when true.
// It applies from the next connection on.
func (c *Client) DisableHostnameVerification(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.HostnameVerification = !disabled
}

// DisableEventCache stops (true) or resumes (false) caching events while
// the client is not registered.
func (c *Client) DisableEventCache(disabled bool) {
	c.mu.Lock()
	c.settings.EventCache.Enabled = !disabled
	c.mu.Unlock()
	c.cache.setEnabled(!disabled)
}

// SetEventCacheSize changes how many events the cache holds. Shrinking
// drops the oldest events.
func (c *Client) SetEventCacheSize(size int) {
	c.mu.Lock()
	c.settings.EventCache.Size = size
	c.mu.Unlock()
	c.cache.resize(size)
}

// CreateComplexDataFormat declares an empty complex type that properties
// can be added to.
func (c *Client) CreateComplexDataFormat(name string) {
	c.builder.CreateComplexType(name)
}

// AddProperty adds a property to a complex type. propertyType is a
// primitive keyword or the name of another complex type.
func (c *Client) AddProperty(typeName, property, propertyType string, isArray bool) error {
	return c.builder.AddProperty(typeName, property, propertyType, isArray)
}

// AddConfigParameter declares a configuration parameter the broker can
// change. format is a primitive keyword such as "boolean" or "int32".
func (c *Client) AddConfigParameter(key string, value any, format string) error {
	return c.registry.AddConfigParameter(key, value, format)
}

// ConfigParameter returns the current value of a configuration parameter.
func (c *Client) ConfigParameter(key string) (any, bool) {
	return c.registry.ConfigParameter(key)
}

// AddEvent declares an event from individual arguments.
func (c *Client) AddEvent(eventID, name, description, dataType string, priority any, isArray bool) error {
	return c.registry.AddEvent(eventID, name, description, dataType, priority, isArray)
}

// AddEventSpec declares an event.
func (c *Client) AddEventSpec(spec selfdescription.EventSpec) error {
	return c.registry.AddEventSpec(spec)
}

// AddFunction declares a function from individual arguments.
func (c *Client) AddFunction(functionID, name, description, dataType string, handler selfdescription.Handler, isArray bool, responseEvents []string) error {
	return c.registry.AddFunction(functionID, name, description, dataType, handler, isArray, responseEvents)
}

// AddFunctionSpec declares a function.
func (c *Client) AddFunctionSpec(spec selfdescription.FunctionSpec) error {
	return c.registry.AddFunctionSpec(spec)
}

// SelfDescription renders the document sent on registration.
func (c *Client) SelfDescription() selfdescription.SelfDescription {
	return c.registry.Render()
}

// CachedEvents returns the events waiting in the cache, oldest first.
func (c *Client) CachedEvents() []selfdescription.Implementation {
	return c.cache.snapshot()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a websocket connection is open.
func (c *Client) IsConnected() bool {
	switch c.State() {
	case Connected, Registering, Registered:
		return true
	default:
		return false
	}
}

// IsRegistered reports whether the broker acknowledged the registration.
func (c *Client) IsRegistered() bool {
	return c.State() == Registered
}

// Subscribe returns a channel of state changes and a function that ends
// the subscription and closes the channel. A subscriber that does not keep
// up loses changes.
func (c *Client) Subscribe() (<-chan StateChange, func()) {
	ch := make(chan StateChange, subscriberBuffer)
	cancel := c.notifier.subscribe(&subscriber{ch: ch})
	return ch, cancel
}

// OnStateChange registers fn for every state change and returns a function
// removing it. fn runs on the goroutine that caused the change and must
// not block.
func (c *Client) OnStateChange(fn func(StateChange)) func() {
	return c.notifier.subscribe(&subscriber{fn: fn})
}

// setStateLocked changes the state and returns the notification to publish
// once c.mu is released.
func (c *Client) setStateLocked(state ConnectionState, token protocol.Token) StateChange {
	now := time.Now()
	if c.state != state {
		c.stateSince = now
	}
	c.state = state
	c.recordStateLocked()
	return StateChange{State: state, Token: token, Time: now}
}

func (c *Client) recordState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordStateLocked()
}

func (c *Client) recordStateLocked() {
	if c.metrics == nil {
		return
	}
	connected := c.state == Connected || c.state == Registering || c.state == Registered
	c.metrics.RecordState(int(c.state), connected, c.state == Registered)
}
