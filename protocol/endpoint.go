package protocol

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

const (
	websocketPath = "/websocket/data"
	minServerID   = 100
	maxServerID   = 999
)

// NormalizeBaseURL rewrites http(s) to ws(s) and rejects any other scheme
// with ErrInvalidEndpoint. Trailing slashes are dropped.
func NormalizeBaseURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
	default:
		return "", errors.Invalidf(errors.ErrInvalidEndpoint, "protocol", "NormalizeBaseURL",
			"endpoint %q must use ws, wss, http or https", raw)
	}
	scheme, rest, _ := strings.Cut(u, "://")
	rest = strings.TrimRight(rest, "/")
	if rest == "" {
		return "", errors.Invalidf(errors.ErrInvalidEndpoint, "protocol", "NormalizeBaseURL",
			"endpoint %q has no host", raw)
	}
	return scheme + "://" + rest, nil
}

// WebsocketURL normalizes raw and appends the broker path. With framing the
// path carries a random server id (100-999) and a fresh session id.
func WebsocketURL(raw string, framing bool) (string, error) {
	base, err := NormalizeBaseURL(raw)
	if err != nil {
		return "", err
	}
	if !framing {
		return base + websocketPath + "/websocket", nil
	}
	serverID := minServerID + rand.IntN(maxServerID-minServerID+1)
	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%s/%d/%s/websocket", base, websocketPath, serverID, sessionID), nil
}
