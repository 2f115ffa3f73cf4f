// Package config loads shell configuration from TOML with environment
// overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/kv"
)

// DefaultBaseURL is the remote application loaded into the frame.
const DefaultBaseURL = "https://mystaffpro.com/v6/m_mobile"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHELLAUTH_"

// Config is the top-level configuration structure.
type Config struct {
	Remote RemoteConfig `toml:"remote"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// RemoteConfig describes the remote application.
type RemoteConfig struct {
	// BaseURL is the address the frame loads, before handshake parameters.
	BaseURL string `toml:"base_url"`

	// TrustedOrigin is the only origin messages are accepted from.
	// Defaults to the scheme and host of BaseURL.
	TrustedOrigin string `toml:"trusted_origin"`
}

// StoreConfig selects the durable storage backend for the session.
type StoreConfig struct {
	// Type is the backend type (e.g., "file", "sqlite", "redis", "memory").
	Type string `toml:"type"`

	// Path is the backend location: a directory, database file or address.
	Path string `toml:"path"`

	// Key is the storage key of the session record.
	Key string `toml:"key"`

	// Passphrase, when set, encrypts stored values.
	Passphrase string `toml:"passphrase"`

	// Timeout bounds each storage operation, as a Go duration string.
	Timeout string `toml:"timeout"`

	// Options contains backend-specific settings.
	Options map[string]string `toml:"options"`
}

// ServerConfig configures the host process.
type ServerConfig struct {
	Addr string `toml:"addr"`

	// MockPasskey enables the mock passkey sign-in.
	MockPasskey bool `toml:"mock_passkey"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is text or json.
	Format string `toml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Remote: RemoteConfig{BaseURL: DefaultBaseURL},
		Store: StoreConfig{
			Type:    "file",
			Path:    defaultStateDir(),
			Key:     "session",
			Timeout: "2s",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "shellauth")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "shellauth")
	}
	return filepath.Join(os.TempDir(), "shellauth")
}

// mergeConfig returns base with every non-zero value of override applied.
func mergeConfig(base, override Config) Config {
	result := base
	if override.Remote.BaseURL != "" {
		result.Remote.BaseURL = override.Remote.BaseURL
	}
	if override.Remote.TrustedOrigin != "" {
		result.Remote.TrustedOrigin = override.Remote.TrustedOrigin
	}
	if override.Store.Type != "" {
		result.Store.Type = override.Store.Type
	}
	if override.Store.Path != "" {
		result.Store.Path = override.Store.Path
	}
	if override.Store.Key != "" {
		result.Store.Key = override.Store.Key
	}
	if override.Store.Passphrase != "" {
		result.Store.Passphrase = override.Store.Passphrase
	}
	if override.Store.Timeout != "" {
		result.Store.Timeout = override.Store.Timeout
	}
	if len(override.Store.Options) > 0 {
		result.Store.Options = override.Store.Options
	}
	if override.Server.Addr != "" {
		result.Server.Addr = override.Server.Addr
	}
	if override.Server.MockPasskey {
		result.Server.MockPasskey = true
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		result.Log.Format = override.Log.Format
	}
	return result
}

// Load reads path and merges it over Defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return mergeConfig(cfg, file), nil
}

// ApplyEnv overrides values from SHELLAUTH_* variables found by lookup,
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("BASE_URL", &c.Remote.BaseURL)
	str("TRUSTED_ORIGIN", &c.Remote.TrustedOrigin)
	str("STORE_TYPE", &c.Store.Type)
	str("STORE_PATH", &c.Store.Path)
	str("STORE_KEY", &c.Store.Key)
	str("STORE_PASSPHRASE", &c.Store.Passphrase)
	str("STORE_TIMEOUT", &c.Store.Timeout)
	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "MOCK_PASSKEY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sMOCK_PASSKEY: %w", EnvPrefix, err)
		}
		c.Server.MockPasskey = b
	}
	return nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if _, err := c.Handshake(); err != nil {
		return fmt.Errorf("remote.base_url: %w", err)
	}
	if err := shellauth.ValidateOrigin(c.Origin()); err != nil {
		return fmt.Errorf("remote.trusted_origin: %w", err)
	}
	if c.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}
	if _, err := c.StoreTimeout(); err != nil {
		return fmt.Errorf("store.timeout: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Handshake returns the handshake URL builder for the remote application.
func (c Config) Handshake() (shellauth.Handshake, error) {
	return shellauth.NewHandshake(c.Remote.BaseURL)
}

// Origin returns the trusted message origin: the configured value, or the
// origin of the base URL.
func (c Config) Origin() string {
	if c.Remote.TrustedOrigin != "" {
		return c.Remote.TrustedOrigin
	}
	h, err := c.Handshake()
	if err != nil {
		return ""
	}
	return h.Origin()
}

// StoreTimeout parses the storage timeout. Empty means no timeout.
func (c Config) StoreTimeout() (time.Duration, error) {
	if c.Store.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Store.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// KV returns the backend configuration for kv.Open.
func (c Config) KV() kv.Config {
	return kv.Config{
		Type:    c.Store.Type,
		Path:    c.Store.Path,
		Options: c.Store.Options,
	}
}

// NewLogger builds a logger writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}
