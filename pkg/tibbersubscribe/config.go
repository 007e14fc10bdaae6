package tibbersubscribe

import (
	"github.com/CasaMack/tibber-subscribe/internal/adapters/gqlws"
	"github.com/CasaMack/tibber-subscribe/internal/adapters/sink"
	"github.com/CasaMack/tibber-subscribe/internal/app/config"
	"github.com/CasaMack/tibber-subscribe/internal/app/logging"
	"github.com/CasaMack/tibber-subscribe/internal/app/supervisor"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// TibberConfig holds the endpoint, credentials and field selection.
	TibberConfig = config.TibberConfig
	// TransportConfig holds websocket details shared by every session.
	TransportConfig = gqlws.Config
	// ReconnectPolicy controls the backoff between failed sessions.
	ReconnectPolicy = supervisor.ReconnectPolicy
	// SinkConfig selects the built-in sink.
	SinkConfig = config.SinkConfig
	// InfluxConfig configures the InfluxDB sink.
	InfluxConfig = sink.InfluxConfig
	// TimescaleConfig configures the TimescaleDB sink.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the process logger.
	LogConfig = config.LogConfig
	// LogRotation controls log file rollover.
	LogRotation = logging.Rotation
)

const (
	SinkInfluxDB  = config.SinkInfluxDB
	SinkTimescale = config.SinkTimescale

	ProtocolGraphQLWS          = gqlws.ProtocolGraphQLWS
	ProtocolGraphQLTransportWS = gqlws.ProtocolGraphQLTransportWS
)

// LoadConfig loads YAML from disk (optional), then environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultLogRotation returns the rollover used when none is configured.
func DefaultLogRotation() LogRotation {
	return logging.DefaultRotation()
}

// DefaultReconnectPolicy returns the backoff used when none is configured.
func DefaultReconnectPolicy() ReconnectPolicy {
	return supervisor.DefaultPolicy()
}
