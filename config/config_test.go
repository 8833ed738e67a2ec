package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msberrors "github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

const sampleProperties = `# sample identity
msb.url=http://localhost:8085
msb.uuid=76499ad5-e7b6-4e4a-9a1e-3a2f8f1f8c4b
msb.name=Go Sample SmartObject
msb.description=Go Sample SmartObject description
msb.token=76499ad5
msb.type=SmartObject
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Properties(t *testing.T) {
	cfg, err := Load(writeFile(t, "application.properties", sampleProperties))
	require.NoError(t, err)

	assert.Equal(t, Identity{
		Type:        TypeSmartObject,
		UUID:        "76499ad5-e7b6-4e4a-9a1e-3a2f8f1f8c4b",
		Name:        "Go Sample SmartObject",
		Description: "Go Sample SmartObject description",
		Token:       "76499ad5",
	}, cfg.Identity)

	want := DefaultSettings()
	want.URL = "http://localhost:8085"
	assert.Equal(t, want, cfg.Settings)
}

func TestLoad_PropertiesWithSettings(t *testing.T) {
	content := sampleProperties + `
msb.debug=true
msb.reconnectinterval=5000
msb.keepalive=true
msb.heartbeatinterval=2000
msb.sockjsframing=false
msb.eventcache.enabled=false
msb.eventcache.size=50
`
	cfg, err := Load(writeFile(t, "application.properties", content))
	require.NoError(t, err)

	s := cfg.Settings
	assert.True(t, s.Debug)
	assert.Equal(t, 5000, s.ReconnectIntervalMs)
	assert.True(t, s.KeepAlive)
	assert.Equal(t, 2000, s.HeartbeatIntervalMs)
	assert.False(t, s.SockJSFraming)
	assert.False(t, s.EventCache.Enabled)
	assert.Equal(t, 50, s.EventCache.Size)
	assert.True(t, s.AutoReconnect, "untouched keys keep defaults")
}

func TestLoad_TLSSettings(t *testing.T) {
	content := sampleProperties + `
msb.hostnameverification=false
msb.tls.cafiles=/etc/msb/ca.pem, /etc/msb/intermediate.pem
msb.tls.minversion=1.3
msb.tls.certfile=/etc/msb/client.pem
msb.tls.keyfile=/etc/msb/client-key.pem
`
	cfg, err := Load(writeFile(t, "application.properties", content))
	require.NoError(t, err)

	opts := cfg.Settings.TLSOptions()
	assert.Equal(t, []string{"/etc/msb/ca.pem", "/etc/msb/intermediate.pem"}, opts.CAFiles)
	assert.Equal(t, "1.3", opts.MinVersion)
	assert.Equal(t, "/etc/msb/client.pem", opts.CertFile)
	assert.Equal(t, "/etc/msb/client-key.pem", opts.KeyFile)
	assert.True(t, opts.InsecureSkipVerify)

	assert.True(t, DefaultSettings().TLSOptions().IsZero())
}

func TestSettings_ValidateTLS(t *testing.T) {
	s := DefaultSettings()
	s.TLS.MinVersion = "1.1"
	assert.ErrorIs(t, s.Validate(), msberrors.ErrInvalidConfig)

	s = DefaultSettings()
	s.TLS.CertFile = "client.pem"
	assert.ErrorIs(t, s.Validate(), msberrors.ErrInvalidConfig)

	s.TLS.KeyFile = "client-key.pem"
	assert.NoError(t, s.Validate())
}

func TestLoad_YAML(t *testing.T) {
	content := `msb:
  url: https://msb.example.com
  uuid: 0d0d7a7c-3a43-4a5e-9a0f-8e6a2f4f5b21
  name: YAML Application
  description: loaded from yaml
  token: 0d0d7a7c
  type: Application
  eventcache:
    size: 10
`
	cfg, err := Load(writeFile(t, "msb.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, TypeApplication, cfg.Identity.Type)
	assert.Equal(t, "https://msb.example.com", cfg.Settings.URL)
	assert.Equal(t, 10, cfg.Settings.EventCache.Size)
	assert.True(t, cfg.Settings.EventCache.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MSB_URL", "https://override.example.com")
	t.Setenv("MSB_EVENTCACHE__SIZE", "7")
	t.Setenv("MSB_DEBUG", "true")

	cfg, err := Load(writeFile(t, "application.properties", sampleProperties))
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.Settings.URL)
	assert.Equal(t, 7, cfg.Settings.EventCache.Size)
	assert.True(t, cfg.Settings.Debug)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MSB_UUID", "env-uuid")
	t.Setenv("MSB_NAME", "env name")
	t.Setenv("MSB_TOKEN", "env-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-uuid", cfg.Identity.UUID)
	assert.Equal(t, TypeSmartObject, cfg.Identity.Type)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "unsupported extension",
			path:    func(t *testing.T) string { return writeFile(t, "config.json", "{}") },
			wantErr: msberrors.ErrInvalidConfig,
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.properties") },
			wantErr: msberrors.ErrInvalidConfig,
		},
		{
			name:    "missing identity",
			path:    func(t *testing.T) string { return writeFile(t, "a.properties", "msb.url=http://x\n") },
			wantErr: msberrors.ErrMissingConfig,
		},
		{
			name: "reconnect below minimum",
			path: func(t *testing.T) string {
				return writeFile(t, "a.properties", sampleProperties+"msb.reconnectinterval=1000\n")
			},
			wantErr: msberrors.ErrInvalidConfig,
		},
		{
			name: "unknown service type",
			path: func(t *testing.T) string {
				return writeFile(t, "a.properties", sampleProperties+"msb.type=Robot\n")
			},
			wantErr: msberrors.ErrInvalidConfig,
		},
		{
			name: "unsupported url scheme",
			path: func(t *testing.T) string {
				return writeFile(t, "a.properties", sampleProperties+"msb.url=ftp://x\n")
			},
			wantErr: msberrors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, msberrors.IsInvalid(err))
		})
	}
}

func TestSettings_Intervals(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "10s", s.ReconnectInterval().String())
	assert.Equal(t, "8s", s.HeartbeatInterval().String())
	assert.NoError(t, s.Validate())

	s.ReconnectIntervalMs = 2999
	assert.Error(t, s.Validate())
	s.ReconnectIntervalMs = 3000
	assert.NoError(t, s.Validate())

	s.KeepAlive = true
	s.HeartbeatIntervalMs = 0
	assert.Error(t, s.Validate())
}

func TestConfig_StringMasksToken(t *testing.T) {
	cfg := &Config{Identity: Identity{UUID: "u", Name: "n", Token: "secret", Type: TypeSmartObject}}
	assert.NotContains(t, cfg.String(), "secret")
}

func TestPropertiesParser_RoundTrip(t *testing.T) {
	p := Properties()
	m, err := p.Unmarshal([]byte("msb.name = spaced name \nmsb.eventcache.size=3\n"))
	require.NoError(t, err)

	msb, ok := m["msb"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "spaced name", msb["name"])
	assert.Equal(t, map[string]any{"size": "3"}, msb["eventcache"])

	out, err := p.Marshal(m)
	require.NoError(t, err)
	again, err := p.Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}
