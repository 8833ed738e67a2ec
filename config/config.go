package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
	"github.com/research-virtualfortknox/msb-client-websocket-go/pkg/tlsutil"
)

// Service types accepted by the broker.
const (
	TypeSmartObject = "SmartObject"
	TypeApplication = "Application"
)

// MinReconnectInterval is the shortest reconnect interval the client accepts.
const MinReconnectInterval = 3 * time.Second

// Identity identifies the service at the broker. It is fixed once a client
// has been created.
type Identity struct {
	Type        string `koanf:"type" json:"type"`
	UUID        string `koanf:"uuid" json:"uuid"`
	Name        string `koanf:"name" json:"name"`
	Description string `koanf:"description" json:"description"`
	Token       string `koanf:"token" json:"token"`
}

// Validate checks that the identity can be registered.
func (id Identity) Validate() error {
	var missing []string
	if id.UUID == "" {
		missing = append(missing, "uuid")
	}
	if id.Name == "" {
		missing = append(missing, "name")
	}
	if id.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: msb.%s", errors.ErrMissingConfig, strings.Join(missing, ", msb.")),
			"Identity", "Validate", "check identity")
	}
	if id.Type != TypeSmartObject && id.Type != TypeApplication {
		return errors.Invalidf(errors.ErrInvalidConfig, "Identity", "Validate",
			"msb.type %q must be %s or %s", id.Type, TypeSmartObject, TypeApplication)
	}
	return nil
}

// EventCacheSettings controls the client's offline event cache.
type EventCacheSettings struct {
	Enabled bool `koanf:"enabled" json:"enabled"`
	Size    int  `koanf:"size" json:"size"`
}

// TLSSettings configure wss:// connections beyond hostname verification.
type TLSSettings struct {
	CAFiles    []string `koanf:"cafiles" json:"cafiles,omitempty"`
	MinVersion string   `koanf:"minversion" json:"minversion,omitempty"`
	CertFile   string   `koanf:"certfile" json:"certfile,omitempty"`
	KeyFile    string   `koanf:"keyfile" json:"keyfile,omitempty"`
}

// Settings holds the client behaviour switches. Intervals are in
// milliseconds, as in msb.reconnectinterval=10000.
type Settings struct {
	URL                  string             `koanf:"url" json:"url"`
	Debug                bool               `koanf:"debug" json:"debug"`
	Validation           bool               `koanf:"validation" json:"validation"`
	AutoReconnect        bool               `koanf:"autoreconnect" json:"autoreconnect"`
	ReconnectIntervalMs  int                `koanf:"reconnectinterval" json:"reconnectinterval"`
	KeepAlive            bool               `koanf:"keepalive" json:"keepalive"`
	HeartbeatIntervalMs  int                `koanf:"heartbeatinterval" json:"heartbeatinterval"`
	SockJSFraming        bool               `koanf:"sockjsframing" json:"sockjsframing"`
	HostnameVerification bool               `koanf:"hostnameverification" json:"hostnameverification"`
	EventCache           EventCacheSettings `koanf:"eventcache" json:"eventcache"`
	TLS                  TLSSettings        `koanf:"tls" json:"tls"`
}

// DefaultSettings returns the settings a client starts with.
func DefaultSettings() Settings {
	return Settings{
		Validation:           true,
		AutoReconnect:        true,
		ReconnectIntervalMs:  10000,
		HeartbeatIntervalMs:  8000,
		SockJSFraming:        true,
		HostnameVerification: true,
		EventCache: EventCacheSettings{
			Enabled: true,
			Size:    1000,
		},
	}
}

// TLSOptions returns the options for dialing wss:// brokers.
func (s Settings) TLSOptions() tlsutil.ClientOptions {
	return tlsutil.ClientOptions{
		CAFiles:            s.TLS.CAFiles,
		MinVersion:         s.TLS.MinVersion,
		CertFile:           s.TLS.CertFile,
		KeyFile:            s.TLS.KeyFile,
		InsecureSkipVerify: !s.HostnameVerification,
	}
}

// ReconnectInterval returns the reconnect interval as a duration.
func (s Settings) ReconnectInterval() time.Duration {
	return time.Duration(s.ReconnectIntervalMs) * time.Millisecond
}

// HeartbeatInterval returns the keepalive ping interval as a duration.
func (s Settings) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalMs) * time.Millisecond
}

// Validate checks the settings for values the client cannot run with.
func (s Settings) Validate() error {
	if s.ReconnectInterval() < MinReconnectInterval {
		return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
			"msb.reconnectinterval %dms below minimum %dms", s.ReconnectIntervalMs, MinReconnectInterval.Milliseconds())
	}
	if s.KeepAlive && s.HeartbeatIntervalMs <= 0 {
		return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
			"msb.heartbeatinterval must be positive, got %d", s.HeartbeatIntervalMs)
	}
	if s.EventCache.Size < 0 {
		return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
			"msb.eventcache.size must not be negative, got %d", s.EventCache.Size)
	}
	if !tlsutil.ValidVersion(s.TLS.MinVersion) {
		return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
			"msb.tls.minversion %q must be 1.2 or 1.3", s.TLS.MinVersion)
	}
	if (s.TLS.CertFile == "") != (s.TLS.KeyFile == "") {
		return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
			"msb.tls.certfile and msb.tls.keyfile must be set together")
	}
	if s.URL != "" {
		u, err := url.Parse(s.URL)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: msb.url: %v", errors.ErrInvalidConfig, err),
				"Settings", "Validate", "parse url")
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return errors.Invalidf(errors.ErrInvalidConfig, "Settings", "Validate",
				"msb.url scheme %q not supported", u.Scheme)
		}
	}
	return nil
}

// Config is everything loaded for one client: who it is and how it behaves.
type Config struct {
	Identity Identity
	Settings Settings
}

// Validate checks identity and settings.
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	return c.Settings.Validate()
}

// String renders the config for logs with the token masked.
func (c *Config) String() string {
	token := ""
	if c.Identity.Token != "" {
		token = "***"
	}
	return fmt.Sprintf("Config{type=%s uuid=%s name=%q token=%s url=%s}",
		c.Identity.Type, c.Identity.UUID, c.Identity.Name, token, c.Settings.URL)
}
