// Package config loads storyshare settings from defaults, a YAML file and the
// environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/storyshare/internal/push"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STORYSHARE_"

// Config holds the client configuration.
type Config struct {
	// BaseURL is the story API root, e.g. "https://story-api.dicoding.dev/v1"
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// DataDir holds the SQLite database
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	// VAPIDPublicKey is the application server key push subscriptions are
	// bound to (URL-safe base64)
	VAPIDPublicKey string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`

	// PushServiceURL is the push service new subscription endpoints live under
	PushServiceURL string `yaml:"push_service_url" env:"PUSH_SERVICE_URL"`

	// RequestTimeout bounds every API request
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// DetailTimeout bounds a story detail fetch
	DetailTimeout time.Duration `yaml:"detail_timeout" env:"DETAIL_TIMEOUT"`

	// SubscribeBackoff is how long subscription attempts are skipped after a
	// failure
	SubscribeBackoff time.Duration `yaml:"subscribe_backoff" env:"SUBSCRIBE_BACKOFF"`

	// ProbeInterval is how often connectivity is checked by "watch"
	ProbeInterval time.Duration `yaml:"probe_interval" env:"PROBE_INTERVAL"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is "console" or "json"
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	dataDir := "storyshare-data"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "storyshare")
	}

	return Config{
		BaseURL:          "https://story-api.dicoding.dev/v1",
		DataDir:          dataDir,
		VAPIDPublicKey:   push.DefaultApplicationServerKey,
		PushServiceURL:   "https://push.storyshare.local/send",
		RequestTimeout:   30 * time.Second,
		DetailTimeout:    15 * time.Second,
		SubscribeBackoff: 5 * time.Minute,
		ProbeInterval:    30 * time.Second,
		LogLevel:         "warn",
		LogFormat:        "console",
	}
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "storyshare", "config.yaml")
}

// ConfigOption is a function that modifies the Config.
type ConfigOption func(*Config)

// WithBaseURL sets the API root.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) ConfigOption {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// Apply applies opts to c. Empty string values leave the field unchanged so
// unset flags do not clobber loaded values.
func (c Config) Apply(opts ...ConfigOption) Config {
	for _, opt := range opts {
		before := c
		opt(&c)
		restoreEmpty(&c, before)
	}
	return c
}

func restoreEmpty(c *Config, before Config) {
	if c.BaseURL == "" {
		c.BaseURL = before.BaseURL
	}
	if c.DataDir == "" {
		c.DataDir = before.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = before.LogLevel
	}
}

// LoadOption tunes Load.
type LoadOption func(*loader)

type loader struct {
	environ  map[string]string
	explicit bool
}

// WithEnvironment replaces the process environment (useful for testing).
func WithEnvironment(environ map[string]string) LoadOption {
	return func(l *loader) {
		l.environ = environ
	}
}

// Explicit marks the path as chosen by the user; a missing file is then an
// error instead of being skipped.
func Explicit() LoadOption {
	return func(l *loader) {
		l.explicit = true
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// present), then STORYSHARE_* environment variables.
func Load(path string, opts ...LoadOption) (Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	cfg := DefaultConfig()

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || l.explicit {
				return Config{}, err
			}
		}
	}

	envOpts := env.Options{Prefix: EnvPrefix}
	if l.environ != nil {
		envOpts.Environment = l.environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values Load cannot fix up.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	for name, d := range map[string]time.Duration{
		"request_timeout":   c.RequestTimeout,
		"detail_timeout":    c.DetailTimeout,
		"subscribe_backoff": c.SubscribeBackoff,
		"probe_interval":    c.ProbeInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
