package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// FunctionCall is a decoded C message.
type FunctionCall struct {
	FunctionID    string
	Parameters    map[string]any
	CorrelationID string

	// Recovered is set when the payload only decoded after undoing a
	// second layer of JSON encoding.
	Recovered bool
}

type rawFunctionCall struct {
	FunctionID         string          `json:"functionId"`
	FunctionParameters json.RawMessage `json:"functionParameters"`
	CorrelationID      string          `json:"correlationId"`
}

// ParseFunctionCall decodes the payload of a C message. The correlation id
// is copied into the parameters under "correlationId".
//
// Brokers sometimes send the parameters (or complex values inside them) as
// JSON strings instead of objects. When the payload does not decode as is,
// escaped quotes are undone and string-encoded objects are unwrapped before
// giving up with ErrParsingFailed.
func ParseFunctionCall(payload string) (FunctionCall, error) {
	var raw rawFunctionCall
	recovered := false
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		if err2 := json.Unmarshal([]byte(unescapeQuotes(payload)), &raw); err2 != nil {
			return FunctionCall{}, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"protocol", "ParseFunctionCall", "decode function call")
		}
		recovered = true
	}
	if raw.FunctionID == "" {
		return FunctionCall{}, errors.Invalidf(errors.ErrParsingFailed,
			"protocol", "ParseFunctionCall", "function call without functionId")
	}

	params, unwrapped, err := decodeParameters(raw.FunctionParameters)
	if err != nil {
		return FunctionCall{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"protocol", "ParseFunctionCall", "decode function parameters")
	}
	recovered = recovered || unwrapped
	if recovered {
		unwrapObjects(params)
	}
	if raw.CorrelationID != "" {
		params["correlationId"] = raw.CorrelationID
	}

	return FunctionCall{
		FunctionID:    raw.FunctionID,
		Parameters:    params,
		CorrelationID: raw.CorrelationID,
		Recovered:     recovered,
	}, nil
}

// decodeParameters accepts an object, a JSON string holding an object, or
// nothing. The bool reports whether the string form was met.
func decodeParameters(raw json.RawMessage) (map[string]any, bool, error) {
	params := map[string]any{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return params, false, nil
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, false, err
		}
		if err := json.Unmarshal([]byte(inner), &params); err != nil {
			return nil, false, err
		}
		return params, true, nil
	}

	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	return params, false, nil
}

// unwrapObjects replaces string values holding a JSON object by the object.
func unwrapObjects(params map[string]any) {
	for k, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
			continue
		}
		var obj map[string]any
		if json.Unmarshal([]byte(s), &obj) == nil {
			params[k] = obj
		}
	}
}

func unescapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\\\"`, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `":"{"`, `":{"`)
	return strings.ReplaceAll(s, `}"}}`, `}}}`)
}

// ConfigUpdate is a decoded K message.
type ConfigUpdate struct {
	UUID   string         `json:"uuid"`
	Params map[string]any `json:"params"`
}

// ParseConfigUpdate decodes the payload of a K message.
func ParseConfigUpdate(payload string) (ConfigUpdate, error) {
	var update ConfigUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		if err2 := json.Unmarshal([]byte(strings.ReplaceAll(payload, `\"`, `"`)), &update); err2 != nil {
			return ConfigUpdate{}, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"protocol", "ParseConfigUpdate", "decode configuration update")
		}
	}
	if update.Params == nil {
		update.Params = map[string]any{}
	}
	return update, nil
}
