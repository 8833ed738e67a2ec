package client

import (
	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
)

// handleFrame runs on the read goroutine for every inbound websocket
// message.
func (c *Client) handleFrame(data []byte, framing bool) {
	frame, err := protocol.DecodeFrame(data, framing)
	if err != nil {
		c.recordParseError()
		c.logger.Warn("Dropping undecodable frame", "error", err, "frame", string(data))
		return
	}

	switch frame.Type {
	case protocol.FrameOpen:
		c.logger.Debug("SockJS session open")
	case protocol.FrameHeartbeat:
		c.logger.Debug("Server heartbeat")
	case protocol.FrameClose:
		c.logger.Debug("SockJS session closed by broker", "code", frame.CloseCode, "reason", frame.CloseReason)
	}
	for _, msg := range frame.Messages {
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg string) {
	m := protocol.Classify(msg)
	if c.metrics != nil {
		c.metrics.FramesReceived.WithLabelValues(m.Kind.String()).Inc()
	}

	switch m.Kind {
	case protocol.KindState:
		c.handleToken(m.Token)
	case protocol.KindFunctionCall:
		c.handleFunctionCall(m.Payload)
	case protocol.KindConfigUpdate:
		c.handleConfigUpdate(m.Payload)
	default:
		c.logger.Debug("Ignoring unknown message", "message", msg)
	}
}

func (c *Client) handleToken(token protocol.Token) {
	c.logger.Debug("Broker state token", "token", token)

	switch token {
	case protocol.TokenConnected:
		c.mu.Lock()
		reregister := c.reconnecting && c.conn != nil
		c.reconnecting = false
		var changes []StateChange
		changes = append(changes, StateChange{State: c.state, Token: token})
		if reregister {
			changes = append(changes, c.setStateLocked(Registering, ""))
		}
		c.mu.Unlock()

		c.publish(changes...)
		if reregister {
			_ = c.sendRegistration()
		}

	case protocol.TokenRegistered:
		c.mu.Lock()
		change := c.setStateLocked(Registered, token)
		c.mu.Unlock()

		c.publish(change)
		c.drainCache()

	case protocol.TokenAlreadyConnected, protocol.TokenUnauthorizedConnection:
		c.mu.Lock()
		conn := c.conn
		state := c.state
		if state == Registered || state == Registering {
			state = Connected
		}
		change := c.setStateLocked(state, token)
		c.mu.Unlock()

		c.publish(change)
		c.logger.Warn("Broker refused the session, closing connection", "token", token)
		if conn != nil {
			_ = conn.Close()
		}

	case protocol.TokenRegistrationError, protocol.TokenUnexpectedRegistrationError:
		c.mu.Lock()
		state := c.state
		if state == Registering || state == Registered {
			state = Connected
		}
		change := c.setStateLocked(state, token)
		c.mu.Unlock()

		c.logger.Warn("Registration rejected by broker", "token", token)
		c.publish(change)

	default:
		c.mu.Lock()
		change := StateChange{State: c.state, Token: token}
		c.mu.Unlock()

		if token == protocol.TokenEventForwardingError || token == protocol.TokenUnexpectedEventForwardingError {
			c.logger.Warn("Broker could not forward event", "token", token)
		}
		c.publish(change)
	}
}

func (c *Client) publish(changes ...StateChange) {
	for _, change := range changes {
		c.notifier.publish(change)
	}
}

// drainCache sends the cached events after a registration ack. Events that
// could not be sent stay cached.
func (c *Client) drainCache() {
	if c.cache.empty() {
		return
	}
	c.logger.Debug("Sending cached events", "count", c.cache.size())

	sent, err := c.cache.drain(func(impl selfdescription.Implementation) error {
		if err := c.send(protocol.TagEvent, impl); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.EventsPublished.WithLabelValues(impl.EventID).Inc()
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Cache drain interrupted", "sent", sent, "remaining", c.cache.size(), "error", err)
		return
	}
	c.logger.Debug("Cache drained", "sent", sent)
}

func (c *Client) handleFunctionCall(payload string) {
	call, err := protocol.ParseFunctionCall(payload)
	if err != nil {
		c.recordParseError()
		c.logger.Error("Dropping unparsable function call", "error", err, "payload", payload)
		return
	}
	if call.Recovered {
		c.logger.Info("Double-encoded JSON in function call, decoded after removing quote escapes; avoid mapping complex objects to strings",
			"function_id", call.FunctionID)
	}

	handler := c.registry.Handler(call.FunctionID)
	if handler == nil {
		c.recordFunctionCall(call.FunctionID, "unknown")
		c.logger.Debug("Dropping call of undeclared function", "function_id", call.FunctionID)
		return
	}

	c.recordFunctionCall(call.FunctionID, "handled")
	c.logger.Debug("Function call", "function_id", call.FunctionID, "correlation_id", call.CorrelationID)
	c.invoke(call.FunctionID, handler, call.Parameters)
}

// invoke runs a user handler, keeping the read loop alive if it panics.
func (c *Client) invoke(functionID string, handler selfdescription.Handler, params map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Function handler panicked", "function_id", functionID, "panic", r)
		}
	}()
	handler(params)
}

func (c *Client) handleConfigUpdate(payload string) {
	update, err := protocol.ParseConfigUpdate(payload)
	if err != nil {
		c.recordParseError()
		c.logger.Error("Dropping unparsable configuration update", "error", err, "payload", payload)
		return
	}
	// The broker always gets the current self-description back, even for
	// an update addressed to another service.
	if update.UUID != c.identity.UUID {
		c.logger.Debug("Configuration update for another service, re-registering unchanged", "target", update.UUID)
		_ = c.sendRegistration()
		return
	}

	applied := c.registry.ApplyConfigUpdate(update.Params)
	if c.metrics != nil {
		c.metrics.ConfigUpdates.Inc()
	}
	c.logger.Info("Configuration updated by broker", "keys", applied)

	_ = c.sendRegistration()

	c.mu.Lock()
	change := StateChange{State: c.state, Token: protocol.TokenNewParameters}
	c.mu.Unlock()
	c.publish(change)
}

func (c *Client) recordParseError() {
	if c.metrics != nil {
		c.metrics.ParseErrors.Inc()
	}
}

func (c *Client) recordFunctionCall(functionID, status string) {
	if c.metrics != nil {
		c.metrics.RecordFunctionCall(functionID, status)
	}
}
