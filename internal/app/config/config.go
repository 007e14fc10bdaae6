package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CasaMack/tibber-subscribe/internal/adapters/gqlws"
	"github.com/CasaMack/tibber-subscribe/internal/adapters/sink"
	"github.com/CasaMack/tibber-subscribe/internal/app/logging"
	"github.com/CasaMack/tibber-subscribe/internal/app/supervisor"
	"github.com/CasaMack/tibber-subscribe/internal/tibber"
)

const (
	SinkInfluxDB  = "influxdb"
	SinkTimescale = "timescale"
)

// DefaultFields is the selection used when none is configured.
var DefaultFields = []string{
	tibber.Power.String(),
	tibber.AccumulatedConsumptionLastHour.String(),
}

type Config struct {
	Tibber    TibberConfig               `yaml:"tibber"`
	Reconnect supervisor.ReconnectPolicy `yaml:"reconnect"`
	Sink      SinkConfig                 `yaml:"sink"`
	InfluxDB  sink.InfluxConfig          `yaml:"influxdb"`
	Timescale TimescaleConfig            `yaml:"timescale"`
	Metrics   MetricsConfig              `yaml:"metrics"`
	Log       LogConfig                  `yaml:"log"`
}

type TibberConfig struct {
	gqlws.Config `yaml:",inline"`

	Token     string   `yaml:"token"`
	TokenFile string   `yaml:"token_file"`
	HomeID    string   `yaml:"home_id"`
	Fields    []string `yaml:"fields"`
}

type SinkConfig struct {
	Kind string `yaml:"kind"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level    string           `yaml:"level"`
	Format   string           `yaml:"format"`
	File     string           `yaml:"file"`
	Rotation logging.Rotation `yaml:"rotation"`
}

// Load reads path (optional), applies environment overrides, resolves the
// token and validates the result. An empty path means defaults plus
// environment only.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	// Seeded before decoding so keys absent from the file keep their
	// defaults while explicit zeros (jitter: 0) are honoured.
	cfg := Config{
		Reconnect: supervisor.DefaultPolicy(),
		Log:       LogConfig{Rotation: logging.DefaultRotation()},
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)
	cfg.applyDefaults(getenv)
	if err := cfg.resolveToken(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Tibber.Endpoint, "TIBBER_API_ENDPOINT")
	set(&c.Tibber.Token, "TIBBER_TOKEN")
	set(&c.Tibber.TokenFile, "TOKEN_FILE")
	set(&c.Tibber.HomeID, "HOME_ID")
	set(&c.InfluxDB.Addr, "INFLUXDB_ADDR")
	set(&c.InfluxDB.Database, "INFLUXDB_DB_NAME")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Metrics.Addr, "METRICS_ADDR")

	if v := getenv("TIBBER_FIELDS"); v != "" {
		c.Tibber.Fields = c.Tibber.Fields[:0]
		for _, label := range strings.Split(v, ",") {
			if label = strings.TrimSpace(label); label != "" {
				c.Tibber.Fields = append(c.Tibber.Fields, label)
			}
		}
	}
}

func (c *Config) applyDefaults(getenv func(string) string) {
	c.Tibber.ApplyDefaults()
	if len(c.Tibber.Fields) == 0 {
		c.Tibber.Fields = append([]string(nil), DefaultFields...)
	}
	if c.Tibber.TokenFile == "" {
		c.Tibber.TokenFile = DefaultCredentialsPath(getenv)
	}
	c.Reconnect.ApplyDefaults()
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkInfluxDB
	}
	c.InfluxDB.ApplyDefaults()
	if c.Timescale.Table == "" {
		c.Timescale.Table = "live_measurements"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) resolveToken() error {
	if c.Tibber.Token != "" {
		return nil
	}
	creds, err := ReadCredentials(c.Tibber.TokenFile)
	if err != nil {
		return fmt.Errorf("tibber token not set and credential fallback failed: %w", err)
	}
	c.Tibber.Token = creds.Password
	return nil
}

func (c *Config) validate() error {
	if err := c.Tibber.Validate(); err != nil {
		return fmt.Errorf("tibber config: %w", err)
	}
	if c.Tibber.Token == "" {
		return errors.New("tibber.token is required")
	}
	if c.Tibber.HomeID == "" {
		return errors.New("tibber.home_id is required")
	}
	req, err := c.SubscriptionRequest()
	if err != nil {
		return fmt.Errorf("tibber.fields: %w", err)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("tibber: %w", err)
	}
	if err := c.Reconnect.Validate(); err != nil {
		return fmt.Errorf("reconnect config: %w", err)
	}
	switch c.Sink.Kind {
	case SinkInfluxDB:
		if err := c.InfluxDB.Validate(); err != nil {
			return fmt.Errorf("influxdb config: %w", err)
		}
	case SinkTimescale:
		if c.Timescale.ConnString == "" {
			return errors.New("timescale.conn_string is required")
		}
	default:
		return fmt.Errorf("unknown sink kind %q", c.Sink.Kind)
	}
	if c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// SelectedFields parses the configured labels in order.
func (c *Config) SelectedFields() ([]tibber.Field, error) {
	if len(c.Tibber.Fields) == 0 {
		return nil, tibber.ErrEmptySelection
	}
	fields := make([]tibber.Field, 0, len(c.Tibber.Fields))
	for _, label := range c.Tibber.Fields {
		f, err := tibber.ParseField(label)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// SubscriptionRequest builds the request for the configured home and fields.
func (c *Config) SubscriptionRequest() (tibber.SubscriptionRequest, error) {
	fields, err := c.SelectedFields()
	if err != nil {
		return tibber.SubscriptionRequest{}, err
	}
	b := tibber.NewQueryBuilder(c.Tibber.Token, c.Tibber.HomeID)
	for _, f := range fields {
		b = b.With(f)
	}
	return b.Build(), nil
}
