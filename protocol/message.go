package protocol

import "slices"

// Tag is the one-character prefix of a protocol message.
type Tag string

// Message tags.
const (
	TagRegister     Tag = "R" // client → broker, self-description
	TagEvent        Tag = "E" // client → broker, event implementation
	TagFunctionCall Tag = "C" // broker → client, function invocation
	TagConfigUpdate Tag = "K" // broker → client, configuration parameter update
)

// Token is a connection-state token. Broker tokens arrive as bare messages;
// the client adds two pseudo-tokens of its own to the state stream.
type Token string

// Broker tokens.
const (
	TokenIO                             Token = "IO"
	TokenNIO                            Token = "NIO"
	TokenConnected                      Token = "IO_CONNECTED"
	TokenRegistered                     Token = "IO_REGISTERED"
	TokenPublished                      Token = "IO_PUBLISHED"
	TokenAlreadyConnected               Token = "NIO_ALREADY_CONNECTED"
	TokenRegistrationError              Token = "NIO_REGISTRATION_ERROR"
	TokenUnexpectedRegistrationError    Token = "NIO_UNEXPECTED_REGISTRATION_ERROR"
	TokenUnauthorizedConnection         Token = "NIO_UNAUTHORIZED_CONNECTION"
	TokenEventForwardingError           Token = "NIO_EVENT_FORWARDING_ERROR"
	TokenUnexpectedEventForwardingError Token = "NIO_UNEXPECTED_EVENT_FORWARDING_ERROR"
)

// Client pseudo-tokens.
const (
	TokenClosedAndReconnect Token = "CLOSED_AND_RECONNECT"
	TokenNewParameters      Token = "NEW_PARAMETERS"
)

var brokerTokens = []Token{
	TokenIO,
	TokenNIO,
	TokenConnected,
	TokenRegistered,
	TokenPublished,
	TokenAlreadyConnected,
	TokenRegistrationError,
	TokenUnexpectedRegistrationError,
	TokenUnauthorizedConnection,
	TokenEventForwardingError,
	TokenUnexpectedEventForwardingError,
}

// BrokerTokens returns the fixed set of tokens the broker sends.
func BrokerTokens() []Token {
	return slices.Clone(brokerTokens)
}

// IsBrokerToken reports whether s is exactly one of the broker tokens.
func IsBrokerToken(s string) bool {
	return slices.Contains(brokerTokens, Token(s))
}

// Kind classifies an inbound message.
type Kind int

// Inbound message kinds.
const (
	KindUnknown Kind = iota
	KindState
	KindFunctionCall
	KindConfigUpdate
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindFunctionCall:
		return "function_call"
	case KindConfigUpdate:
		return "config_update"
	default:
		return "unknown"
	}
}

// Message is one classified inbound message.
type Message struct {
	Kind    Kind
	Token   Token  // set for KindState
	Payload string // JSON text after the tag, set for C and K messages
	Raw     string
}

// Classify sorts an unframed inbound message. State tokens must match
// exactly; C and K messages are recognized by their leading tag.
func Classify(msg string) Message {
	m := Message{Raw: msg}
	switch {
	case IsBrokerToken(msg):
		m.Kind = KindState
		m.Token = Token(msg)
	case hasTag(msg, TagFunctionCall):
		m.Kind = KindFunctionCall
		m.Payload = msg[2:]
	case hasTag(msg, TagConfigUpdate):
		m.Kind = KindConfigUpdate
		m.Payload = msg[2:]
	}
	return m
}

func hasTag(msg string, tag Tag) bool {
	return len(msg) >= 2 && msg[:1] == string(tag) && msg[1] == ' '
}
