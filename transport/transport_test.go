package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer answers every text message with "echo: <msg>".
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, append([]byte("echo: "), data...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnSendAndReceive(t *testing.T) {
	srv := echoServer(t)

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	received := make(chan string, 4)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- conn.ReadLoop(func(msg []byte) { received <- string(msg) })
	}()

	require.NoError(t, conn.Send([]byte("R {}")))
	select {
	case msg := <-received:
		assert.Equal(t, "echo: R {}", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}

	require.NoError(t, conn.Close())
	select {
	case err := <-loopDone:
		assert.NoError(t, err, "local close ends the read loop cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}

	err = conn.Send([]byte("E {}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.NoError(t, conn.Close(), "second close is a no-op")
}

func TestConnConcurrentSends(t *testing.T) {
	srv := echoServer(t)

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = conn.ReadLoop(func([]byte) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				assert.NoError(t, conn.Send([]byte("E {}")))
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 100
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	<-loopDone
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewDialer(Options{HandshakeTimeout: time.Second}).Dial(context.Background(), wsURL(srv))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

// silentListener accepts TCP connections and never answers the upgrade.
func silentListener(t *testing.T) string {
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
	return "ws://" + ln.Addr().String()
}

func TestDialCancelAbortsPendingHandshake(t *testing.T) {
	url := silentListener(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := NewDialer(Options{HandshakeTimeout: time.Minute}).Dial(ctx, url)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, context.Canceled), "got %v", err)
		assert.True(t, errors.IsTransient(err))
	case <-time.After(3 * time.Second):
		t.Fatal("dial did not return after cancel")
	}
}

func TestDialAlreadyCancelled(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := NewDialer(Options{}).Dial(ctx, wsURL(srv))
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestReadLoopReportsConnectionLoss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// drop the TCP connection without a close frame
		_ = conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	err = conn.ReadLoop(func([]byte) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnectionLost)

	select {
	case <-conn.Done():
	default:
		t.Fatal("done not closed after read loop ended")
	}
	require.NoError(t, conn.Close())
}

func TestReadLoopNormalCloseFromPeer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("IO_CONNECTED"))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	var got []string
	err = conn.ReadLoop(func(msg []byte) { got = append(got, string(msg)) })
	assert.NoError(t, err)
	assert.Equal(t, []string{"IO_CONNECTED"}, got)
	require.NoError(t, conn.Close())
}

func TestHeartbeatTerminatesWithoutPong(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// never reads, so pings are never answered
		<-release
	}))
	defer srv.Close()
	defer close(release)

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	conn.StartHeartbeat(50 * time.Millisecond)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not terminated")
	}
	require.NoError(t, conn.Close())
}

func TestHeartbeatKeepsResponsivePeer(t *testing.T) {
	srv := echoServer(t)

	conn, err := NewDialer(Options{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = conn.ReadLoop(func([]byte) {})
	}()
	conn.StartHeartbeat(30 * time.Millisecond)

	select {
	case <-conn.Done():
		t.Fatal("responsive peer was terminated")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, conn.Close())
	<-loopDone
}

func TestSkipHostnameVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()
	url := "wss" + strings.TrimPrefix(srv.URL, "https")

	_, err := NewDialer(Options{HandshakeTimeout: time.Second}).Dial(context.Background(), url)
	require.Error(t, err, "self-signed certificate rejected by default")

	conn, err := NewDialer(Options{SkipHostnameVerification: true}).Dial(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestDialWithTrustedRootCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()
	url := "wss" + strings.TrimPrefix(srv.URL, "https")

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	tlsConfig := &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}

	conn, err := NewDialer(Options{TLSConfig: tlsConfig}).Dial(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.False(t, tlsConfig.InsecureSkipVerify)

	conn, err = NewDialer(Options{TLSConfig: tlsConfig, SkipHostnameVerification: true}).Dial(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.False(t, tlsConfig.InsecureSkipVerify, "caller config is not modified")
}
