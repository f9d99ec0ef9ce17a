// Package config loads agent configuration from defaults, an optional YAML
// file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Backend names for the NFC reader implementations.
const (
	BackendPCSC   = "pcsc"
	BackendLibNFC = "libnfc"
)

// Config is the agent's process configuration.
type Config struct {
	// BaseURL is the check-in service root, e.g. "https://checkin.example.com".
	BaseURL string `koanf:"base_url"`

	// Token is a previously issued auth token. When set, Username/Password
	// are ignored.
	Token string `koanf:"token"`

	// Username and Password authenticate against the service when no token
	// is configured.
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Tag is the check-in tag this station serves, e.g. "dinner".
	Tag string `koanf:"tag"`

	// Checkin selects the direction: true checks badges in, false out.
	Checkin bool `koanf:"checkin"`

	// Backend selects the reader implementation: "pcsc" or "libnfc".
	Backend string `koanf:"backend"`

	// Device names the reader to use. Empty means the first one found.
	Device string `koanf:"device"`

	// Port is the local status server's listen port.
	Port int `koanf:"port"`

	// APISecret, when set, is required as a Bearer token on local server
	// connections.
	APISecret string `koanf:"api_secret"`

	// ReadTimeoutMS bounds waiting for a badge plus reading it.
	ReadTimeoutMS int `koanf:"read_timeout_ms"`

	// SubmitTimeoutMS bounds each service request during a scan.
	SubmitTimeoutMS int `koanf:"submit_timeout_ms"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Checkin:         true,
		Backend:         BackendPCSC,
		Port:            18080,
		ReadTimeoutMS:   60_000,
		SubmitTimeoutMS: 10_000,
	}
}

// ReadTimeout returns the badge read deadline as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// SubmitTimeout returns the per-request service deadline as a duration.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutMS) * time.Millisecond
}

// Load builds a Config by layering defaults, optional file, and env vars,
// then validates it. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CHECKIN_CONFIG is set
//  3. env (prefix CHECKIN_)
func Load() (*Config, error) {
	cfg, err := LoadPartial()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPartial layers defaults, file, and env without validating, for callers
// that apply CLI flag overrides before calling Validate themselves.
func LoadPartial() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CHECKIN_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: CHECKIN_BASE_URL, CHECKIN_TAG, ...
	// Keys keep their underscores to match the koanf tags on the struct.
	envProvider := env.Provider("CHECKIN_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "checkin_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants a loaded Config must hold.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url must not be empty")
	}
	if c.Tag == "" {
		return errors.New("tag must not be empty")
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return errors.New("either token or username+password must be set")
	}
	switch c.Backend {
	case BackendPCSC, BackendLibNFC:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendPCSC, BackendLibNFC, c.Backend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ReadTimeoutMS <= 0 || c.SubmitTimeoutMS <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}
