package client

import (
	"context"
	"fmt"
	"time"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
	"github.com/research-virtualfortknox/msb-client-websocket-go/pkg/tlsutil"
	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
	"github.com/research-virtualfortknox/msb-client-websocket-go/transport"
)

// Connect opens the websocket connection to endpoint, or to the configured
// URL when endpoint is empty. The connection is established in the
// background; follow progress with Subscribe or OnStateChange. ctx bounds
// the first dial only. Connecting an already connecting or connected client
// does nothing.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	if endpoint == "" {
		endpoint = c.settings.URL
	}
	framing := c.settings.SockJSFraming
	url, err := protocol.WebsocketURL(endpoint, framing)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if state := c.state; state != Disconnected && state != ClosedPendingReconnect {
		c.mu.Unlock()
		c.logger.Debug("Connect ignored, connection already active", "state", state.String())
		return nil
	}

	c.stopReconnectTimerLocked()
	c.userDisconnect = false
	c.endpoint = endpoint
	c.session++
	session := c.session
	runCtx := c.ensureRunCtxLocked()
	change := c.setStateLocked(Connecting, "")
	c.wg.Add(1)
	c.mu.Unlock()

	c.notifier.publish(change)
	c.logger.Info("Connecting to MSB", "url", url)

	dialCtx, cancel := context.WithCancel(runCtx)
	stop := context.AfterFunc(ctx, cancel)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()
		c.run(dialCtx, session, url, framing)
	}()
	return nil
}

// ensureRunCtxLocked returns the context of the current session, creating
// one after New or Disconnect.
func (c *Client) ensureRunCtxLocked() context.Context {
	if c.runCtx == nil || c.runCtx.Err() != nil {
		c.runCtx, c.runCancel = context.WithCancel(context.Background())
	}
	return c.runCtx
}

// run dials url and then serves the connection until it closes.
func (c *Client) run(ctx context.Context, session uint64, url string, framing bool) {
	c.mu.Lock()
	settings := c.settings
	c.mu.Unlock()

	tlsConfig, err := tlsutil.LoadClientConfig(settings.TLSOptions())
	if err != nil {
		c.logger.Error("Loading TLS configuration failed", "error", err)
		c.connectionClosed(session, nil, err)
		return
	}
	dialer := transport.NewDialer(transport.Options{
		TLSConfig:                tlsConfig,
		SkipHostnameVerification: !settings.HostnameVerification,
		Logger:                   c.logger,
	})
	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		c.logger.Warn("Connecting to MSB failed", "url", url, "error", err)
		c.connectionClosed(session, nil, err)
		return
	}

	c.mu.Lock()
	if c.userDisconnect || c.session != session || c.conn != nil {
		c.mu.Unlock()
		c.logger.Debug("Dropping connection of a replaced session", "url", url)
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.framing = framing
	change := c.setStateLocked(Connected, "")
	c.mu.Unlock()

	c.notifier.publish(change)
	c.logger.Debug("Socket open")

	if settings.KeepAlive {
		conn.StartHeartbeat(settings.HeartbeatInterval())
	}

	err = conn.ReadLoop(func(data []byte) { c.handleFrame(data, framing) })
	c.connectionClosed(session, conn, err)
}

// connectionClosed moves the client out of the connected states after conn
// closed (or failed to open when conn is nil) and schedules a reconnect
// unless the user disconnected. Reports from a replaced session, or a failed
// dial while another connection is live, are ignored.
func (c *Client) connectionClosed(session uint64, conn *transport.Conn, cause error) {
	c.mu.Lock()
	if session != c.session || c.conn != conn {
		c.mu.Unlock()
		c.logger.Debug("Ignoring close of a replaced session", "cause", cause)
		return
	}
	c.conn = nil
	if cause != nil {
		c.lastError = cause.Error()
	}

	if c.userDisconnect {
		c.mu.Unlock()
		return
	}

	changes := []StateChange{c.setStateLocked(Disconnected, "")}
	if c.settings.AutoReconnect {
		c.reconnecting = true
		changes = append(changes, c.setStateLocked(ClosedPendingReconnect, protocol.TokenClosedAndReconnect))
		interval := c.settings.ReconnectInterval()
		c.scheduleReconnectLocked(interval)
		c.logger.Info("Connection closed, reconnecting", "in", interval, "cause", cause)
	} else {
		c.logger.Warn("Connection closed", "cause", cause)
	}
	c.mu.Unlock()

	for _, change := range changes {
		c.notifier.publish(change)
	}
}

func (c *Client) scheduleReconnectLocked(interval time.Duration) {
	c.stopReconnectTimerLocked()
	c.wg.Add(1)
	c.reconnectTimer = time.AfterFunc(interval, func() {
		defer c.wg.Done()
		c.reconnect()
	})
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil && c.reconnectTimer.Stop() {
		c.wg.Done()
	}
	c.reconnectTimer = nil
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.userDisconnect || c.state != ClosedPendingReconnect {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.reconnects++
	endpoint := c.endpoint
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Reconnects.Inc()
	}
	if err := c.Connect(context.Background(), endpoint); err != nil {
		c.logger.Error("Reconnect failed", "error", err)
	}
}

// Disconnect closes the connection and cancels registration polling and
// any pending reconnect. It does not wait for background goroutines; see
// Wait. Calling Disconnect more than once is safe.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.userDisconnect = true
	c.reconnecting = false
	c.session++
	c.stopReconnectTimerLocked()
	if c.registerCancel != nil {
		c.registerCancel()
		c.registerCancel = nil
	}
	if c.runCancel != nil {
		c.runCancel()
	}
	conn := c.conn
	c.conn = nil

	var change *StateChange
	if c.state != Disconnected {
		ch := c.setStateLocked(Disconnected, "")
		change = &ch
	}
	c.mu.Unlock()

	if change != nil {
		c.logger.Info("Disconnecting")
		c.notifier.publish(*change)
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("Closing websocket failed", "error", err)
		}
	}
}

// Wait blocks until the goroutines started by Connect, Register and the
// reconnect timer have returned. Call it after Disconnect, never from a
// function handler or state callback.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Register sends the self-description as soon as the client is connected
// and not yet registered, checking every 100ms. It returns immediately;
// Disconnect cancels a pending registration.
func (c *Client) Register() {
	c.mu.Lock()
	if c.registerCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ensureRunCtxLocked())
	c.registerCancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(registerPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.tryRegister() {
					c.mu.Lock()
					if c.registerCancel != nil {
						c.registerCancel()
						c.registerCancel = nil
					}
					c.mu.Unlock()
					return
				}
			}
		}
	}()
}

// tryRegister sends R when connected but not registered.
func (c *Client) tryRegister() bool {
	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		c.mu.Unlock()
		return false
	}
	change := c.setStateLocked(Registering, "")
	c.mu.Unlock()

	c.notifier.publish(change)
	_ = c.sendRegistration()
	return true
}

// sendRegistration sends the current self-description. A failed send closes
// the connection, which triggers the reconnect policy.
func (c *Client) sendRegistration() error {
	return c.send(protocol.TagRegister, c.registry.Render())
}

// send encodes and writes one frame on the current connection.
func (c *Client) send(tag protocol.Tag, payload any) error {
	c.mu.Lock()
	conn := c.conn
	framing := c.framing
	c.mu.Unlock()

	if conn == nil {
		return errors.WrapTransient(errors.ErrNotConnected, "Client", "send", fmt.Sprintf("send %s frame", tag))
	}

	frame, err := protocol.Encode(tag, payload, framing)
	if err != nil {
		c.recordSend(tag, err)
		c.logger.Error("Encoding frame failed", "tag", tag, "error", err)
		return err
	}
	if err := conn.Send(frame); err != nil {
		c.recordSend(tag, err)
		c.logger.Error("Sending frame failed, closing connection", "tag", tag, "error", err)
		_ = conn.Close()
		return err
	}
	c.recordSend(tag, nil)
	c.logger.Debug("Sent", "frame", string(frame))
	return nil
}

func (c *Client) recordSend(tag protocol.Tag, err error) {
	if c.metrics != nil {
		c.metrics.RecordFrameSent(string(tag), err)
	}
}
