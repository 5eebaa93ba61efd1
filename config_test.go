package oren

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.Equal(t, 10*time.Second, cfg.LoginTimeout)
	assert.Equal(t, "2.0", cfg.MinServerVersion)

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "defaults lack collaborators")

	cfg.Dialer = &fakeDialer{}
	cfg.Directory = &fakeDirectory{}
	assert.NoError(t, cfg.Validate())
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *ClientConfig)
	}{
		{"no directory", func(cfg *ClientConfig) { cfg.Directory = nil }},
		{"zero login timeout", func(cfg *ClientConfig) { cfg.LoginTimeout = 0 }},
		{"negative request timeout", func(cfg *ClientConfig) { cfg.RequestTimeout = -time.Second }},
		{"bad ping timeout", func(cfg *ClientConfig) { cfg.PingTimeout = -2 * time.Second }},
		{"retry intervals out of order", func(cfg *ClientConfig) { cfg.RetryMaxInterval = time.Microsecond }},
		{"negative breaker failures", func(cfg *ClientConfig) { cfg.BreakerMaxFailures = -1 }},
		{"breaker without reset", func(cfg *ClientConfig) { cfg.BreakerResetTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(&fakeDialer{}, &fakeDirectory{})
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)
		})
	}

	cfg := testConfig(&fakeDialer{}, &fakeDirectory{})
	cfg.PingTimeout = WaitForever
	cfg.BreakerMaxFailures = 0
	cfg.BreakerResetTimeout = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "oren.yml", `
signature: s3cret
login_timeout: 3s
retry_initial_interval: 5ms
retry_max_interval: 250ms
breaker_max_failures: 0
min_server_version: "2.1"
max_server_version: "3.0"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Signature)
	assert.Equal(t, 3*time.Second, cfg.LoginTimeout)
	assert.Equal(t, 5*time.Millisecond, cfg.RetryInitialInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryMaxInterval)
	assert.Equal(t, 0, cfg.BreakerMaxFailures)
	assert.Equal(t, "2.1", cfg.MinServerVersion)
	assert.Equal(t, "3.0", cfg.MaxServerVersion)
	assert.Equal(t, DefaultClientConfig().RequestTimeout, cfg.RequestTimeout, "unset keys keep defaults")
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "oren.toml", `
signature = "s3cret"
ping_timeout = "750ms"
trace_timeout = "20s"
breaker_max_failures = 3
breaker_reset_timeout = "1m"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Signature)
	assert.Equal(t, 750*time.Millisecond, cfg.PingTimeout)
	assert.Equal(t, 20*time.Second, cfg.TraceTimeout)
	assert.Equal(t, 3, cfg.BreakerMaxFailures)
	assert.Equal(t, time.Minute, cfg.BreakerResetTimeout)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown yaml key", "c.yaml", "login_timout: 3s\n"},
		{"unknown toml key", "c.toml", "login_timout = \"3s\"\n"},
		{"bad duration", "c.yml", "login_timeout: soon\n"},
		{"bad syntax", "c.toml", "signature = \n"},
		{"unsupported format", "c.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "missing file error = %v", err)
}
