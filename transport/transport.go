package transport

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// Default timeouts.
const (
	DefaultHandshakeTimeout = 45 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// Options configure a Dialer.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// TLSConfig is used for wss:// URLs; nil keeps Go's defaults.
	TLSConfig *tls.Config
	// SkipHostnameVerification accepts any server certificate on wss.
	SkipHostnameVerification bool

	Logger *slog.Logger
}

// Dialer opens websocket connections to the broker.
type Dialer struct {
	dialer       *websocket.Dialer
	netDialer    net.Dialer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewDialer creates a Dialer.
func NewDialer(opts Options) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig.Clone(),
	}
	if opts.SkipHostnameVerification {
		if dialer.TLSClientConfig == nil {
			dialer.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		dialer.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // opt-in for self-signed brokers
	}

	return &Dialer{
		dialer:       dialer,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
	}
}

// Dial connects to url. Cancelling ctx aborts the dial, including a
// handshake the server never answers.
func (d *Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	var (
		mu  sync.Mutex
		raw net.Conn
	)
	// websocket only honours the handshake deadline while reading the
	// upgrade response, so cancellation closes the socket instead.
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if raw != nil {
			_ = raw.Close()
		}
	})
	dialer := *d.dialer
	dialer.NetDialContext = func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.netDialer.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		raw = conn
		mu.Unlock()
		if ctx.Err() != nil {
			_ = conn.Close()
			return nil, ctx.Err()
		}
		return conn, nil
	}

	ws, resp, err := dialer.DialContext(ctx, url, nil)
	cancelled := !stop()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err == nil && cancelled {
		_ = ws.Close()
		err = ctx.Err()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !stderrors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, errors.WrapTransient(err, "Dialer", "Dial", fmt.Sprintf("connect to %s", url))
	}
	d.logger.Debug("Websocket open", "url", url)
	return newConn(ws, d.writeTimeout, d.logger), nil
}

// Conn is one websocket connection. Send, Ping and Close are safe for
// concurrent use; ReadLoop must run on a single goroutine.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	writeMu sync.Mutex
	alive   atomic.Bool
	closing atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration, logger *slog.Logger) *Conn {
	c := &Conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
	c.alive.Store(true)
	ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

// Send writes one text message.
func (c *Conn) Send(data []byte) error {
	if c.closing.Load() {
		return errors.WrapTransient(errors.ErrNotConnected, "Conn", "Send", "send frame")
	}

	// gorilla/websocket supports one concurrent writer
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrSendFailed, err), "Conn", "Send", "send frame")
	}
	return nil
}

// ReadLoop delivers every inbound text message to handle until the
// connection ends. It returns nil after a local Close or a normal close
// from the peer, otherwise an error wrapping ErrConnectionLost.
func (c *Conn) ReadLoop(handle func([]byte)) error {
	defer c.terminate()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "Conn", "ReadLoop", "read frame")
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// StartHeartbeat pings the peer every interval and terminates the
// connection when no pong arrived since the previous ping.
func (c *Conn) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				if !c.alive.Swap(false) {
					c.logger.Error("Terminating websocket: no pong within heartbeat interval",
						"interval", interval)
					c.terminate()
					return
				}
				if err := c.Ping(); err != nil {
					c.logger.Debug("Heartbeat ping failed", "error", err)
				}
			}
		}
	}()
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
	if err != nil {
		return errors.WrapTransient(err, "Conn", "Ping", "send ping")
	}
	return nil
}

// Done is closed once the connection is terminated.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame, closes the socket and waits for the heartbeat
// to stop. Calling Close more than once is safe.
func (c *Conn) Close() error {
	var err error
	if c.closing.CompareAndSwap(false, true) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		if werr != nil && !stderrors.Is(werr, websocket.ErrCloseSent) {
			err = errors.WrapTransient(werr, "Conn", "Close", "send close frame")
		}
	}
	c.terminate()
	c.wg.Wait()
	return err
}

// terminate closes the socket without the close handshake.
func (c *Conn) terminate() {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.done)
		_ = c.ws.Close()
	})
}
