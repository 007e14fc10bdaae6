package tibbersubscribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CasaMack/tibber-subscribe/internal/adapters/gqlws"
	"github.com/CasaMack/tibber-subscribe/internal/adapters/observability"
	"github.com/CasaMack/tibber-subscribe/internal/adapters/sink"
	"github.com/CasaMack/tibber-subscribe/internal/app/config"
	"github.com/CasaMack/tibber-subscribe/internal/app/dispatch"
	"github.com/CasaMack/tibber-subscribe/internal/app/logging"
	"github.com/CasaMack/tibber-subscribe/internal/app/supervisor"
	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	sink          Sink
	session       Session
	observability Observability
	logger        *slog.Logger
	registry      *prometheus.Registry
	noMetricsHTTP bool
}

// WithSink injects a custom sink so points can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithSession replaces the websocket session, e.g. with a simulator.
func WithSession(s Session) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.session = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger sets the logger used by the default observability backend
// instead of the one described by Config.Log.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg and serves them from it, instead of
// the process-wide default registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithoutMetricsServer keeps Run from listening on Config.Metrics.Addr.
// Handler still serves the same endpoints.
func WithoutMetricsServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noMetricsHTTP = true
	}
}

// Runtime wires session → dispatcher → sink under a reconnecting supervisor
// and exposes simple lifecycle hooks for embedding inside any Go service.
type Runtime struct {
	cfg        *Config
	obs        *healthObs
	sink       ports.Sink
	ownsSink   bool
	session    ports.Session
	supervisor *supervisor.Supervisor
	gatherer   prometheus.Gatherer
	logCloser  io.Closer
	serveHTTP  bool
	metricsSrv *http.Server
}

// NewRuntime bootstraps the default adapters (websocket session, sink chosen
// by Config.Sink.Kind, Prometheus observability). RuntimeOption values
// override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, serveHTTP: !overrides.noMetricsHTTP}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if overrides.registry != nil {
		registerer, gatherer = overrides.registry, overrides.registry
	}
	rt.gatherer = gatherer

	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			l, closer, err := logging.Open(cfg.Log.File, cfg.Log.Level, cfg.Log.Format, cfg.Log.Rotation)
			if err != nil {
				return nil, err
			}
			logger, rt.logCloser = l, closer
		}
		prom, err := observability.NewPromObs(logger, registerer)
		if err != nil {
			rt.closeLog()
			return nil, err
		}
		obs = prom
	}
	rt.obs = &healthObs{Observability: obs}

	snk := overrides.sink
	if snk == nil {
		var err error
		snk, err = newSink(cfg)
		if err != nil {
			rt.closeLog()
			return nil, err
		}
		rt.ownsSink = true
	}
	rt.sink = snk

	sess := overrides.session
	if sess == nil {
		req, err := cfg.SubscriptionRequest()
		if err == nil {
			err = req.Validate()
		}
		if err != nil {
			rt.closeOwned()
			return nil, err
		}
		handler := dispatch.New(snk, rt.obs)
		sess, err = gqlws.NewSession(cfg.Tibber.Config, req, handler, rt.obs)
		if err != nil {
			rt.closeOwned()
			return nil, err
		}
	}
	rt.session = sess
	rt.supervisor = supervisor.New(sess, cfg.Reconnect, rt.obs)

	return rt, nil
}

func newSink(cfg *Config) (ports.Sink, error) {
	switch cfg.Sink.Kind {
	case config.SinkInfluxDB, "":
		return sink.NewInfluxSink(cfg.InfluxDB)
	case config.SinkTimescale:
		return sink.OpenTimescaleSink(cfg.Timescale.ConnString, cfg.Timescale.Table)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

// Run serves metrics and keeps the subscription alive until ctx is
// cancelled, then shuts down. It returns nil on cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if r.serveHTTP {
		if err := r.startMetrics(); err != nil {
			return errors.Join(err, r.closeOwned())
		}
	}

	r.obs.LogInfo("subscription starting",
		ports.F("endpoint", r.cfg.Tibber.Endpoint),
		ports.F("home_id", r.cfg.Tibber.HomeID),
		ports.F("fields", r.cfg.Tibber.Fields),
		ports.F("sink", r.sink.Name()))

	runErr := r.supervisor.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server and closes the sink and log file the
// runtime opened itself.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		r.metricsSrv = nil
	}
	if err := r.closeOwned(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Connected reports whether the current session has an open connection.
func (r *Runtime) Connected() bool {
	return r.obs.connected.Load()
}

// Handler serves /metrics and /healthz.
func (r *Runtime) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (r *Runtime) startMetrics() error {
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	r.metricsSrv = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := r.metricsSrv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics server exited", err)
		}
	}()
	r.obs.LogInfo("metrics server listening", ports.F("addr", ln.Addr().String()))
	return nil
}

func (r *Runtime) closeOwned() error {
	var errs []error
	if r.ownsSink && r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, err)
		}
		r.ownsSink = false
	}
	if err := r.closeLog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runtime) closeLog() error {
	if r.logCloser == nil {
		return nil
	}
	err := r.logCloser.Close()
	r.logCloser = nil
	return err
}

// healthObs tracks the session-connected gauge for /healthz.
type healthObs struct {
	ports.Observability
	connected atomic.Bool
}

func (h *healthObs) SetGauge(name string, v float64) {
	if name == ports.GaugeSessionConnected {
		h.connected.Store(v > 0)
	}
	h.Observability.SetGauge(name, v)
}
