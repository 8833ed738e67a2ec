package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// Encode renders payload as "<TAG> <json>". With framing the result is
// wrapped as a single-element JSON array holding that string escaped.
func Encode(tag Tag, payload any, framing bool) ([]byte, error) {
	body, err := marshal(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "Encode",
			fmt.Sprintf("encode %s payload", tag))
	}

	frame := make([]byte, 0, len(body)+2)
	frame = append(frame, tag...)
	frame = append(frame, ' ')
	frame = append(frame, body...)
	if !framing {
		return frame, nil
	}

	wrapped, err := marshal([]string{string(frame)})
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "Encode", "wrap frame")
	}
	return wrapped, nil
}

// marshal encodes v without HTML escaping and without the trailing newline
// json.Encoder appends.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// FrameType is the type of an inbound SockJS frame.
type FrameType int

// Inbound frame types.
const (
	FrameRaw FrameType = iota
	FrameOpen
	FrameHeartbeat
	FrameMessages
	FrameClose
)

func (t FrameType) String() string {
	switch t {
	case FrameOpen:
		return "open"
	case FrameHeartbeat:
		return "heartbeat"
	case FrameMessages:
		return "messages"
	case FrameClose:
		return "close"
	default:
		return "raw"
	}
}

// Frame is one decoded inbound websocket text message.
type Frame struct {
	Type        FrameType
	Messages    []string
	CloseCode   int
	CloseReason string
}

// DecodeFrame unpacks an inbound websocket message. Without framing the
// whole message is a single protocol message. With framing the first byte
// selects the SockJS frame type: o (open), h (heartbeat), a (array of
// messages) or c ([code, reason]).
func DecodeFrame(data []byte, framing bool) (Frame, error) {
	if !framing {
		return Frame{Type: FrameRaw, Messages: []string{string(data)}}, nil
	}
	if len(data) == 0 {
		return Frame{}, errors.WrapInvalid(errors.ErrParsingFailed, "protocol", "DecodeFrame", "empty frame")
	}

	switch data[0] {
	case 'o':
		return Frame{Type: FrameOpen}, nil
	case 'h':
		return Frame{Type: FrameHeartbeat}, nil
	case 'a':
		var msgs []string
		if err := json.Unmarshal(data[1:], &msgs); err != nil {
			return Frame{}, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"protocol", "DecodeFrame", "decode message array")
		}
		return Frame{Type: FrameMessages, Messages: msgs}, nil
	case 'c':
		var reason []any
		f := Frame{Type: FrameClose}
		if err := json.Unmarshal(data[1:], &reason); err == nil {
			if len(reason) > 0 {
				if code, ok := reason[0].(float64); ok {
					f.CloseCode = int(code)
				}
			}
			if len(reason) > 1 {
				f.CloseReason, _ = reason[1].(string)
			}
		}
		return f, nil
	default:
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("%w: unknown frame type %q", errors.ErrParsingFailed, data[0]),
			"protocol", "DecodeFrame", "decode frame")
	}
}
