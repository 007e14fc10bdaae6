package tibbersubscribe

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/CasaMack/tibber-subscribe/pkg/tibbersubscribe"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/CasaMack/tibber-subscribe directly.
type (
	Config              = base.Config
	TibberConfig        = base.TibberConfig
	TransportConfig     = base.TransportConfig
	ReconnectPolicy     = base.ReconnectPolicy
	SinkConfig          = base.SinkConfig
	InfluxConfig        = base.InfluxConfig
	TimescaleConfig     = base.TimescaleConfig
	MetricsConfig       = base.MetricsConfig
	LogConfig           = base.LogConfig
	LogRotation         = base.LogRotation
	Flow                = base.Flow
	FlowOption          = base.FlowOption
	StreamInOption      = base.StreamInOption
	StreamOutOption     = base.StreamOutOption
	Runtime             = base.Runtime
	RuntimeOption       = base.RuntimeOption
	Point               = base.Point
	PointSink           = base.PointSink
	Sink                = base.Sink
	Session             = base.Session
	Observability       = base.Observability
	Field               = base.Field
	MeasurementField    = base.MeasurementField
	SubscriptionRequest = base.SubscriptionRequest
)

const (
	Category                   = base.Category
	SinkInfluxDB               = base.SinkInfluxDB
	SinkTimescale              = base.SinkTimescale
	ProtocolGraphQLWS          = base.ProtocolGraphQLWS
	ProtocolGraphQLTransportWS = base.ProtocolGraphQLTransportWS
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return base.DefaultReconnectPolicy()
}

func DefaultLogRotation() LogRotation {
	return base.DefaultLogRotation()
}

// Field catalog.
func ParseField(label string) (MeasurementField, error) {
	return base.ParseField(label)
}

func MeasurementFields() []MeasurementField {
	return base.MeasurementFields()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInFields(fields ...MeasurementField) StreamInOption {
	return base.StreamInFields(fields...)
}

func StreamInReconnect(p ReconnectPolicy) StreamInOption {
	return base.StreamInReconnect(p)
}

func StreamInSession(s Session) StreamInOption {
	return base.StreamInSession(s)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn PointSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithSession(s Session) RuntimeOption {
	return base.WithSession(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *slog.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithoutMetricsServer() RuntimeOption {
	return base.WithoutMetricsServer()
}

// Sink adapters.
func NewCallbackSink(name string, fn PointSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Point, func()) {
	return base.NewChannelSink(name, buffer)
}
