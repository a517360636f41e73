// Package config provides configuration management for meshinv.
//
// Config file locations (priority order):
//  1. $MESHINV_CONFIG
//  2. ./meshinv.yaml
//  3. $XDG_CONFIG_HOME/meshinv/config.yaml
//  4. ~/.config/meshinv/config.yaml
//  5. /etc/meshinv/config.yaml
//
// Secrets may be kept out of the file: MESHINV_UISP_PASSWORD,
// MESHINV_SLACK_WEBHOOK_URL and MESHINV_DATABASE_DSN override the
// corresponding fields.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"meshinv/internal/domain"
)

// Secret overrides read from the environment
const (
	EnvUISPPassword    = "MESHINV_UISP_PASSWORD"
	EnvSlackWebhookURL = "MESHINV_SLACK_WEBHOOK_URL"
	EnvDatabaseDSN     = "MESHINV_DATABASE_DSN"
)

// Defaults
const (
	DefaultDatabasePath     = "./meshinv.db"
	DefaultHTTPAddr         = ":8080"
	DefaultPollInterval     = 15 * time.Minute
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultPostgresMaxConns = 10
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Notify: NotifyConfig{Log: true}}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Database.Driver == DriverPostgres && c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultPostgresMaxConns
	}

	if c.NetworkNumbers.Min == 0 && c.NetworkNumbers.Max == 0 {
		c.NetworkNumbers = domain.DefaultNetworkNumberSpace()
	}

	if c.UISP.PollInterval == 0 {
		c.UISP.PollInterval = Duration(DefaultPollInterval)
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Sectors.RadiusKm == 0 {
		c.Sectors.RadiusKm = domain.DefaultSectorRadiusKm
	}
	if c.Sectors.WidthDeg == 0 {
		c.Sectors.WidthDeg = domain.DefaultSectorWidthDeg
	}
}

// applyEnv overrides secrets from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvUISPPassword); v != "" {
		c.UISP.Password = v
	}
	if v := os.Getenv(EnvSlackWebhookURL); v != "" {
		c.Notify.Slack.WebhookURL = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
}

// Validate checks field constraints and the network number range
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.NetworkNumbers.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UISP.URL != "" {
		if u, err := url.Parse(c.UISP.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid config: uisp url %q must be an http(s) URL", c.UISP.URL)
		}
	}
	return nil
}

// SlackEnabled reports whether the Slack sink should be wired
func (c *Config) SlackEnabled() bool {
	return c.Notify.Slack.WebhookURL != ""
}
