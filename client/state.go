package client

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/research-virtualfortknox/msb-client-websocket-go/protocol"
)

// ConnectionState is the client's view of its broker session.
type ConnectionState int

// Connection states.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Registering
	Registered
	ClosedPendingReconnect
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Registering:
		return "Registering"
	case Registered:
		return "Registered"
	case ClosedPendingReconnect:
		return "ClosedPendingReconnect"
	default:
		return "Unknown"
	}
}

// StateChange is one notification on the state stream. Token is set when
// the change was caused by a broker token or carries one of the client
// pseudo-tokens (CLOSED_AND_RECONNECT, NEW_PARAMETERS).
type StateChange struct {
	State ConnectionState
	Token protocol.Token
	Time  time.Time
}

const subscriberBuffer = 64

type subscriber struct {
	fn func(StateChange)

	mu     sync.Mutex
	ch     chan StateChange
	closed bool
}

func (s *subscriber) deliver(change StateChange, logger *slog.Logger) {
	if s.fn != nil {
		s.fn(change)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- change:
	default:
		logger.Warn("State subscriber too slow, dropping notification",
			"state", change.State.String(), "token", change.Token)
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil && !s.closed {
		close(s.ch)
	}
	s.closed = true
}

// notifier fans state changes out to channel subscribers and callbacks.
// Each publish reaches subscribers in registration order.
type notifier struct {
	mu     sync.Mutex
	nextID int
	order  []int
	subs   map[int]*subscriber
	logger *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{subs: make(map[int]*subscriber), logger: logger}
}

func (n *notifier) subscribe(sub *subscriber) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.order = append(n.order, id)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.order = slices.DeleteFunc(n.order, func(v int) bool { return v == id })
			n.mu.Unlock()
			sub.close()
		})
	}
}

// publish delivers change outside the notifier lock, so callbacks may
// subscribe, unsubscribe or call back into the client. Channel subscribers
// that are not keeping up lose the change.
func (n *notifier) publish(change StateChange) {
	if change.Time.IsZero() {
		change.Time = time.Now()
	}

	n.mu.Lock()
	subs := make([]*subscriber, 0, len(n.order))
	for _, id := range n.order {
		subs = append(subs, n.subs[id])
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(change, n.logger)
	}
}
