package oren

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/oops"
	"gopkg.in/yaml.v2"
)

// ClientConfig configures a Client. Collaborators are set in code; the
// remaining fields can also be loaded from a YAML or TOML file with LoadConfig.
type ClientConfig struct {
	// Signature is the construction-time login signature; see signLogin.
	Signature string

	// LoginTimeout bounds a whole login attempt: directory query, dial and reply.
	LoginTimeout time.Duration
	// RequestTimeout bounds Start/Meta/Refuse/Logout transport calls.
	RequestTimeout time.Duration
	// PingTimeout is used by Ping when called with a zero timeout.
	PingTimeout time.Duration
	// TraceTimeout is used by TraceRoute when called with a zero timeout.
	TraceTimeout time.Duration

	// Retransmission pacing for SendData.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// Per-directory circuit breaker; BreakerMaxFailures 0 disables it.
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	// Accepted server version range; empty bounds are open.
	MinServerVersion string
	MaxServerVersion string

	Dialer    Dialer
	Directory Directory
	Metrics   MetricsCollector // nil = metrics disabled
	// SelectServer picks the login target from a directory list.
	// nil picks the first entry.
	SelectServer func(servers []ServerInfo) ServerInfo
}

// DefaultClientConfig returns production defaults without collaborators.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		LoginTimeout:         10 * time.Second,
		RequestTimeout:       5 * time.Second,
		PingTimeout:          3 * time.Second,
		TraceTimeout:         10 * time.Second,
		RetryInitialInterval: 20 * time.Millisecond,
		RetryMaxInterval:     1 * time.Second,
		BreakerMaxFailures:   5,
		BreakerResetTimeout:  30 * time.Second,
		MinServerVersion:     "2.0",
	}
}

// Validate checks the configuration for use by NewClient.
func (c ClientConfig) Validate() error {
	errb := oops.In("config").Code("invalid_configuration")
	switch {
	case c.Dialer == nil:
		return errb.Wrapf(ErrInvalidConfiguration, "dialer is required")
	case c.Directory == nil:
		return errb.Wrapf(ErrInvalidConfiguration, "directory is required")
	case c.LoginTimeout <= 0:
		return errb.With("login_timeout", c.LoginTimeout).Wrapf(ErrInvalidConfiguration, "login timeout must be positive")
	case c.RequestTimeout <= 0:
		return errb.With("request_timeout", c.RequestTimeout).Wrapf(ErrInvalidConfiguration, "request timeout must be positive")
	case c.PingTimeout <= 0 && c.PingTimeout != WaitForever:
		return errb.With("ping_timeout", c.PingTimeout).Wrapf(ErrInvalidConfiguration, "ping timeout must be positive")
	case c.TraceTimeout <= 0 && c.TraceTimeout != WaitForever:
		return errb.With("trace_timeout", c.TraceTimeout).Wrapf(ErrInvalidConfiguration, "trace timeout must be positive")
	case c.RetryInitialInterval < 0 || c.RetryMaxInterval < c.RetryInitialInterval:
		return errb.With("retry_initial_interval", c.RetryInitialInterval).
			With("retry_max_interval", c.RetryMaxInterval).
			Wrapf(ErrInvalidConfiguration, "retry intervals out of order")
	case c.BreakerMaxFailures < 0:
		return errb.With("breaker_max_failures", c.BreakerMaxFailures).Wrapf(ErrInvalidConfiguration, "breaker failures must not be negative")
	case c.BreakerMaxFailures > 0 && c.BreakerResetTimeout <= 0:
		return errb.With("breaker_reset_timeout", c.BreakerResetTimeout).Wrapf(ErrInvalidConfiguration, "breaker reset timeout must be positive")
	}
	return nil
}

// fileConfig is the on-disk form of ClientConfig. Durations are Go duration
// strings such as "250ms" or "10s"; empty values keep the defaults.
type fileConfig struct {
	Signature            string `yaml:"signature" toml:"signature"`
	LoginTimeout         string `yaml:"login_timeout" toml:"login_timeout"`
	RequestTimeout       string `yaml:"request_timeout" toml:"request_timeout"`
	PingTimeout          string `yaml:"ping_timeout" toml:"ping_timeout"`
	TraceTimeout         string `yaml:"trace_timeout" toml:"trace_timeout"`
	RetryInitialInterval string `yaml:"retry_initial_interval" toml:"retry_initial_interval"`
	RetryMaxInterval     string `yaml:"retry_max_interval" toml:"retry_max_interval"`
	BreakerMaxFailures   *int   `yaml:"breaker_max_failures" toml:"breaker_max_failures"`
	BreakerResetTimeout  string `yaml:"breaker_reset_timeout" toml:"breaker_reset_timeout"`
	MinServerVersion     string `yaml:"min_server_version" toml:"min_server_version"`
	MaxServerVersion     string `yaml:"max_server_version" toml:"max_server_version"`
}

// LoadConfig reads a client configuration file on top of DefaultClientConfig.
// The format follows the extension: .yml/.yaml or .toml. A missing file is an
// error; callers that treat the file as optional should check os.IsNotExist.
func LoadConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	Debug("Parsing config file '%s'", path)

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		err = yaml.UnmarshalStrict(data, &fc)
	case ".toml":
		var md toml.MetaData
		md, err = toml.Decode(string(data), &fc)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown keys %v", undecoded)
			}
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfiguration, ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, path, err)
	}

	if err := fc.apply(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, path, err)
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *ClientConfig) error {
	if fc.Signature != "" {
		cfg.Signature = fc.Signature
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"login_timeout", fc.LoginTimeout, &cfg.LoginTimeout},
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"ping_timeout", fc.PingTimeout, &cfg.PingTimeout},
		{"trace_timeout", fc.TraceTimeout, &cfg.TraceTimeout},
		{"retry_initial_interval", fc.RetryInitialInterval, &cfg.RetryInitialInterval},
		{"retry_max_interval", fc.RetryMaxInterval, &cfg.RetryMaxInterval},
		{"breaker_reset_timeout", fc.BreakerResetTimeout, &cfg.BreakerResetTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %v", d.key, err)
		}
		*d.dst = v
	}
	if fc.BreakerMaxFailures != nil {
		cfg.BreakerMaxFailures = *fc.BreakerMaxFailures
	}
	if fc.MinServerVersion != "" {
		cfg.MinServerVersion = fc.MinServerVersion
	}
	if fc.MaxServerVersion != "" {
		cfg.MaxServerVersion = fc.MaxServerVersion
	}
	return nil
}
