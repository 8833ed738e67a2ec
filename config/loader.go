package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// EnvPrefix prefixes every environment override.
// MSB_URL overrides msb.url, MSB_EVENTCACHE__SIZE overrides msb.eventcache.size.
const EnvPrefix = "MSB_"

// DefaultFile is the identity file looked up when no path is given.
const DefaultFile = "application.properties"

func defaults() map[string]any {
	s := DefaultSettings()
	return map[string]any{
		"msb.type":                 TypeSmartObject,
		"msb.debug":                s.Debug,
		"msb.validation":           s.Validation,
		"msb.autoreconnect":        s.AutoReconnect,
		"msb.reconnectinterval":    s.ReconnectIntervalMs,
		"msb.keepalive":            s.KeepAlive,
		"msb.heartbeatinterval":    s.HeartbeatIntervalMs,
		"msb.sockjsframing":        s.SockJSFraming,
		"msb.hostnameverification": s.HostnameVerification,
		"msb.eventcache.enabled":   s.EventCache.Enabled,
		"msb.eventcache.size":      s.EventCache.Size,
	}
}

// Load reads the client configuration in three layers: built-in defaults,
// then the file at path (.properties, .yaml or .yml), then MSB_ environment
// variables. An empty path loads DefaultFile when it exists and skips the
// file layer otherwise.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "set defaults")
		}
	}

	// 2. File
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := checkConfigFile(path); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"config", "Load", "check config file")
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"config", "Load", "load config file")
		}
	}

	// 3. Environment
	for _, kv := range os.Environ() {
		name, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if err := validateEnvVar(name, value); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"config", "Load", "check environment")
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"config", "Load", "load environment")
	}

	cfg := &Config{}
	if err := k.Unmarshal("msb", &cfg.Identity); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"config", "Load", "decode identity")
	}
	if err := k.Unmarshal("msb", &cfg.Settings); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"config", "Load", "decode settings")
	}

	cfg.Settings.TLS.CAFiles = splitList(cfg.Settings.TLS.CAFiles)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList flattens comma separated entries, as written in
// msb.tls.cafiles=a.pem,b.pem.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return Properties()
	}
}

// envKey maps MSB_EVENTCACHE__SIZE to msb.eventcache.size.
func envKey(s string) string {
	return "msb." + strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
