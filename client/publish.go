package client

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
	"github.com/research-virtualfortknox/msb-client-websocket-go/pkg/timestamp"
	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
)

// PublishRequest describes one publish call.
type PublishRequest struct {
	EventID string

	// Value becomes the event's data object. Nil reuses the value of the
	// previous publish.
	Value any

	// Priority accepts LOW, MEDIUM, HIGH or 0, 1, 2 and is kept for later
	// publishes. A bool is read as Cached instead, for compatibility with
	// the positional publish form.
	Priority any

	// Cached lets the event wait in the cache while the client is not
	// registered.
	Cached bool

	// PostDate is accepted for compatibility. The event is always stamped
	// with the time it is sent or cached.
	PostDate time.Time

	// CorrelationID links the event to a function call. Publishing without
	// one clears the id of the previous publish.
	CorrelationID string
}

// PublishOption sets a field of a PublishRequest.
type PublishOption func(*PublishRequest)

// WithValue sets the event value.
func WithValue(value any) PublishOption {
	return func(r *PublishRequest) { r.Value = value }
}

// WithPriority sets the event priority. A bool is read as the cached flag.
func WithPriority(priority any) PublishOption {
	return func(r *PublishRequest) { r.Priority = priority }
}

// WithCached lets the event be cached while the client is not registered.
func WithCached(cached bool) PublishOption {
	return func(r *PublishRequest) { r.Cached = cached }
}

// WithPostDate passes a post date hint.
func WithPostDate(t time.Time) PublishOption {
	return func(r *PublishRequest) { r.PostDate = t }
}

// WithCorrelationID sets the correlation id.
func WithCorrelationID(id string) PublishOption {
	return func(r *PublishRequest) { r.CorrelationID = id }
}

// Publish sends event eventID, or caches or discards it when the client is
// not registered. The only error is ErrUnknownEvent; send failures are
// logged and close the connection.
func (c *Client) Publish(eventID string, opts ...PublishOption) error {
	req := PublishRequest{EventID: eventID}
	for _, opt := range opts {
		opt(&req)
	}
	return c.PublishRequest(req)
}

// PublishRequest is Publish with all arguments in one value.
func (c *Client) PublishRequest(req PublishRequest) error {
	ev, ok := c.registry.Event(req.EventID)
	if !ok {
		return errors.Invalidf(errors.ErrUnknownEvent, "Client", "Publish", "event %s not declared", req.EventID)
	}

	cached := req.Cached
	priority := req.Priority
	if b, isBool := priority.(bool); isBool {
		cached = b
		priority = nil
	}

	value := req.Value
	if ev.DataFormat == nil && value != nil {
		c.logger.Debug("Event has no data format, ignoring value", "event_id", req.EventID)
		value = nil
	}
	if value != nil {
		snapshot, err := copyValue(value)
		if err != nil {
			c.logger.Warn("Event value cannot be encoded, keeping it by reference",
				"event_id", req.EventID, "error", err)
		} else {
			value = snapshot
		}
	}

	impl, _ := c.registry.UpdateImplementation(req.EventID, func(impl *selfdescription.Implementation) {
		if value != nil {
			impl.DataObject = value
		}
		if priority != nil {
			impl.Priority = selfdescription.NormalizePriority(priority)
		}
		impl.CorrelationID = req.CorrelationID
		impl.PostDate = timestamp.Now()
	})

	c.mu.Lock()
	validate := c.settings.Validation
	registered := c.state == Registered && c.conn != nil
	c.mu.Unlock()

	if validate && value != nil && !c.validator.Validate(ev.DataFormat, value) {
		if c.metrics != nil {
			c.metrics.ValidationFailures.WithLabelValues(req.EventID).Inc()
		}
		c.logger.Warn("Event value does not match its data format, publishing anyway",
			"event_id", req.EventID, "value", fmt.Sprintf("%v", value))
	}

	switch {
	case registered:
		if err := c.send(protocol.TagEvent, impl); err == nil {
			if c.metrics != nil {
				c.metrics.EventsPublished.WithLabelValues(req.EventID).Inc()
			}
			c.logger.Debug("Published", "event_id", req.EventID)
		}

	case cached && c.cache.push(impl):
		if c.metrics != nil {
			c.metrics.EventsCached.Inc()
		}
		c.logger.Debug("Not registered, event cached", "event_id", req.EventID, "cache_size", c.cache.size())

	default:
		if c.metrics != nil {
			c.metrics.EventsDiscarded.Inc()
		}
		if cached {
			c.logger.Debug("Event cache disabled, cached flag overridden and event discarded", "event_id", req.EventID)
		} else {
			c.logger.Debug("Not registered and caching not requested, event discarded", "event_id", req.EventID)
		}
	}
	return nil
}

// copyValue detaches maps, slices, structs and pointers from the caller by a
// JSON round trip, the same shape the value is sent in. Scalars are returned
// as they are.
func copyValue(value any) (any, error) {
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
	default:
		return value, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateEventValue checks value against the data format of eventID.
// Events without a data format accept any value.
func (c *Client) ValidateEventValue(eventID string, value any) (bool, error) {
	ev, ok := c.registry.Event(eventID)
	if !ok {
		return false, errors.Invalidf(errors.ErrUnknownEvent, "Client", "ValidateEventValue",
			"event %s not declared", eventID)
	}
	return c.validator.Validate(ev.DataFormat, value), nil
}

// SetConfigParameter changes a configuration parameter and sends the
// updated self-description. It requires a registered connection. If the
// update cannot be sent the old value is restored, the connection is closed
// and ErrConfigSyncFailed is returned.
func (c *Client) SetConfigParameter(key string, value any) error {
	c.mu.Lock()
	registered := c.state == Registered && c.conn != nil
	c.mu.Unlock()
	if !registered {
		return errors.Invalidf(errors.ErrNotRegistered, "Client", "SetConfigParameter",
			"cannot change %s", key)
	}

	old, err := c.registry.SetConfigParameter(key, value)
	if err != nil {
		return err
	}

	if err := c.sendRegistration(); err != nil {
		if _, rerr := c.registry.SetConfigParameter(key, old); rerr != nil {
			c.logger.Error("Restoring configuration parameter failed", "key", key, "error", rerr)
		}
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrConfigSyncFailed, err),
			"Client", "SetConfigParameter", fmt.Sprintf("update parameter %s", key))
	}
	c.logger.Debug("Configuration parameter changed", "key", key)
	return nil
}
