package config

import (
	"time"

	"meshinv/internal/domain"
)

// Config is the on-disk configuration of a meshinv process
type Config struct {
	Database       DatabaseConfig            `yaml:"database"`
	NetworkNumbers domain.NetworkNumberSpace `yaml:"network_numbers"`
	UISP           UISPConfig                `yaml:"uisp"`
	Notify         NotifyConfig              `yaml:"notify"`
	HTTP           HTTPConfig                `yaml:"http"`
	Log            LogConfig                 `yaml:"log"`
	Sectors        SectorConfig              `yaml:"sectors"`
}

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=sqlite postgres"`
	Path     string `yaml:"path,omitempty" validate:"required_if=Driver sqlite"`
	DSN      string `yaml:"dsn,omitempty" validate:"required_if=Driver postgres"`
	MaxConns int    `yaml:"max_conns,omitempty" validate:"gte=0"`
}

// UISPConfig holds the UISP NMS connection
type UISPConfig struct {
	Enabled            bool     `yaml:"enabled"`
	URL                string   `yaml:"url,omitempty" validate:"required_if=Enabled true"`
	Username           string   `yaml:"username,omitempty" validate:"required_if=Enabled true"`
	Password           string   `yaml:"password,omitempty" validate:"required_if=Enabled true"`
	PollInterval       Duration `yaml:"poll_interval,omitempty"`
	Timeout            Duration `yaml:"timeout,omitempty"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify,omitempty"`
}

// NotifyConfig selects notification sinks
type NotifyConfig struct {
	Log   bool        `yaml:"log"`
	Slack SlackConfig `yaml:"slack"`
}

// SlackConfig configures the Slack webhook sink. It is enabled when a
// webhook URL is set.
type SlackConfig struct {
	WebhookURL string   `yaml:"webhook_url,omitempty" validate:"omitempty,url"`
	Attempts   int      `yaml:"attempts,omitempty" validate:"gte=0,lte=10"`
	Timeout    Duration `yaml:"timeout,omitempty"`
}

// HTTPConfig holds the API listener
type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// SectorConfig holds geometry used when a sector's metadata is incomplete
type SectorConfig struct {
	RadiusKm float64 `yaml:"radius_km" validate:"gt=0"`
	WidthDeg float64 `yaml:"width_deg" validate:"gt=0,lte=360"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
