package client

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
)

func testIdentity() config.Identity {
	return config.Identity{
		Type:        config.TypeSmartObject,
		UUID:        "76c1bba4-9bb4-4bdc-8e86-ea3e1a4a4a23",
		Name:        "Test SmartObject",
		Description: "Client under test",
		Token:       "1a4a4a23",
	}
}

func testSettings(framing bool) *config.Settings {
	s := config.DefaultSettings()
	s.SockJSFraming = framing
	s.ReconnectIntervalMs = 50
	return &s
}

func newTestClient(t *testing.T, settings *config.Settings) *Client {
	t.Helper()
	c, err := New(testIdentity(), Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Settings: settings,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Disconnect()
		c.Wait()
	})
	return c
}

// waitForState blocks until the client reaches state.
func waitForState(t *testing.T, c *Client, state ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == state },
		3*time.Second, 5*time.Millisecond, "state %s not reached, at %s", state, c.State())
}

// silentEndpoint accepts TCP connections and never answers the websocket
// upgrade, leaving the dial hanging in its handshake.
func silentEndpoint(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var accepted []net.Conn
		defer func() {
			for _, conn := range accepted {
				conn.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted = append(accepted, conn)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		wg.Wait()
	})
	return "http://" + ln.Addr().String()
}
