package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Broker is a minimal MSB broker.
type Broker struct {
	t       testing.TB
	server  *httptest.Server
	framing bool

	mu          sync.Mutex
	conns       []*websocket.Conn
	received    []string
	paths       []string
	ackRegister bool
	greeting    []string
	wg          sync.WaitGroup
}

// NewBroker starts a broker that is closed with the test. With framing the
// broker opens sessions with "o" and wraps messages in SockJS "a" frames.
func NewBroker(t testing.TB, framing bool) *Broker {
	t.Helper()
	b := &Broker{t: t, framing: framing, ackRegister: true, greeting: []string{"IO_CONNECTED"}}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.paths = append(b.paths, r.URL.Path)
		greeting := append([]string(nil), b.greeting...)
		b.wg.Add(1)
		b.mu.Unlock()

		defer b.wg.Done()
		defer conn.Close()

		if framing {
			_ = b.write(conn, "o")
		}
		for _, msg := range greeting {
			b.sendOn(conn, msg)
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg := b.unwrap(data)
			b.mu.Lock()
			b.received = append(b.received, msg)
			ack := b.ackRegister
			b.mu.Unlock()

			if ack && strings.HasPrefix(msg, "R ") {
				b.sendOn(conn, "IO_REGISTERED")
			}
		}
	}))

	t.Cleanup(func() {
		b.DropAll()
		b.server.Close()
		b.wg.Wait()
	})
	return b
}

// URL is the http:// base URL of the broker.
func (b *Broker) URL() string {
	return b.server.URL
}

func (b *Broker) unwrap(data []byte) string {
	if !b.framing {
		return string(data)
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil || len(msgs) != 1 {
		b.t.Errorf("framed message expected, got %s", data)
		return string(data)
	}
	return msgs[0]
}

func (b *Broker) write(conn *websocket.Conn, frame string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (b *Broker) sendOn(conn *websocket.Conn, msg string) {
	frame := msg
	if b.framing {
		wrapped, _ := json.Marshal([]string{msg})
		frame = "a" + string(wrapped)
	}
	_ = b.write(conn, frame)
}

// Send delivers msg on the newest connection.
func (b *Broker) Send(msg string) {
	b.mu.Lock()
	require.NotEmpty(b.t, b.conns, "no client connected")
	conn := b.conns[len(b.conns)-1]
	b.mu.Unlock()
	b.sendOn(conn, msg)
}

// SetAckRegister switches the IO_REGISTERED answer to R messages.
func (b *Broker) SetAckRegister(ack bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackRegister = ack
}

// DropAll closes every connection without a close handshake.
func (b *Broker) DropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		_ = conn.UnderlyingConn().Close()
	}
}

// Connections counts the sessions accepted so far.
func (b *Broker) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// LastPath is the request path of the newest session.
func (b *Broker) LastPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.paths) == 0 {
		return ""
	}
	return b.paths[len(b.paths)-1]
}

// Messages returns received messages starting with prefix.
func (b *Broker) Messages(prefix string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.received {
		if strings.HasPrefix(m, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Events decodes the received E messages.
func (b *Broker) Events() []map[string]any {
	var out []map[string]any
	for _, m := range b.Messages("E ") {
		var ev map[string]any
		require.NoError(b.t, json.Unmarshal([]byte(strings.TrimPrefix(m, "E ")), &ev))
		out = append(out, ev)
	}
	return out
}

// LastRegistration decodes the newest R message.
func (b *Broker) LastRegistration() map[string]any {
	regs := b.Messages("R ")
	require.NotEmpty(b.t, regs)
	var sd map[string]any
	require.NoError(b.t, json.Unmarshal([]byte(strings.TrimPrefix(regs[len(regs)-1], "R ")), &sd))
	return sd
}
