package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

// PromObs logs through slog and records metrics in Prometheus collectors.
type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the tibber collectors with reg. A nil reg falls back
// to prometheus.DefaultRegisterer and a nil logger to slog.Default().
func NewPromObs(logger *slog.Logger, reg prometheus.Registerer) (*PromObs, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		ports.MetricSessionsStarted: counter(ports.MetricSessionsStarted, "Subscription sessions that completed the WebSocket handshake."),
		ports.MetricSessionFailures: counter(ports.MetricSessionFailures, "Sessions that ended with a connect, read or timeout error."),
		ports.MetricSessionTimeouts: counter(ports.MetricSessionTimeouts, "Sessions that ended because no frame arrived within the read timeout."),
		ports.MetricFramesReceived:  counter(ports.MetricFramesReceived, "Inbound frames read from the subscription socket."),
		ports.MetricParseErrors:     counter(ports.MetricParseErrors, "Inbound frames that were not valid JSON."),
		ports.MetricPointsWritten:   counter(ports.MetricPointsWritten, "Measurement points accepted by the sink."),
		ports.MetricSinkErrors:      counter(ports.MetricSinkErrors, "Measurement points the sink failed to persist."),
		ports.MetricFieldsSkipped:   counter(ports.MetricFieldsSkipped, "liveMeasurement members skipped because they were not numeric."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.GaugeSessionConnected: gauge(ports.GaugeSessionConnected, "1 while a subscription session is streaming."),
		ports.GaugeReconnectDelay:   gauge(ports.GaugeReconnectDelay, "Backoff applied before the next reconnect attempt."),
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.HistogramSinkLatency,
		Help:    "Time spent in a single sink write.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	collectors := make([]prometheus.Collector, 0, len(counters)+len(gauges)+1)
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	collectors = append(collectors, latency)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			ports.HistogramSinkLatency: latency,
		},
	}, nil
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.log(slog.LevelDebug, msg, nil, fields)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log(slog.LevelInfo, msg, nil, fields)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	p.log(slog.LevelWarn, msg, err, fields)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log(slog.LevelError, msg, err, fields)
}

func (p *PromObs) log(level slog.Level, msg string, err error, fields []ports.Field) {
	ctx := context.Background()
	if !p.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	p.logger.LogAttrs(ctx, level, msg, attrs...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

var _ ports.Observability = (*PromObs)(nil)
