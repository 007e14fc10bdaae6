package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/CasaMack/tibber-subscribe/internal/domain"
	"github.com/CasaMack/tibber-subscribe/internal/ports"
	"github.com/CasaMack/tibber-subscribe/internal/tibber"
)

// NonNumericFieldError reports a liveMeasurement member whose value is not
// a JSON number. The member is skipped; other members are still written.
type NonNumericFieldError struct {
	Field string
	Raw   string
}

func (e *NonNumericFieldError) Error() string {
	return fmt.Sprintf("field %q is not numeric: %s", e.Field, e.Raw)
}

// Result summarizes one Dispatch call.
type Result struct {
	Written    int
	Skipped    int
	SinkErrors int
}

// Dispatcher turns one liveMeasurement object into sink points.
type Dispatcher struct {
	sink ports.Sink
	obs  ports.Observability
	now  func() time.Time
}

type Option func(*Dispatcher)

// WithClock overrides the receipt-time clock used to stamp points.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func New(sink ports.Sink, obs ports.Observability, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, obs: obs, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch writes one point per numeric member, in key order, synchronously.
// Sink failures are logged and counted but never returned. The returned
// error joins a *NonNumericFieldError for every skipped member.
func (d *Dispatcher) Dispatch(ctx context.Context, measurement map[string]json.RawMessage) (Result, error) {
	var (
		res  Result
		errs []error
	)

	keys := make([]string, 0, len(measurement))
	for k := range measurement {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := parseNumber(measurement[key])
		if !ok {
			res.Skipped++
			d.obs.IncCounter(ports.MetricFieldsSkipped, 1)
			errs = append(errs, &NonNumericFieldError{Field: key, Raw: string(measurement[key])})
			continue
		}

		p := domain.Point{
			Timestamp: d.now(),
			FieldName: key,
			Value:     value,
			Category:  tibber.Category,
		}

		start := time.Now()
		if err := d.sink.Write(ctx, p); err != nil {
			res.SinkErrors++
			d.obs.IncCounter(ports.MetricSinkErrors, 1)
			d.obs.LogError("writing failed", err,
				ports.F("sink", d.sink.Name()),
				ports.F("field", key))
			continue
		}
		d.obs.ObserveLatency(ports.HistogramSinkLatency, time.Since(start).Seconds())
		d.obs.IncCounter(ports.MetricPointsWritten, 1)
		res.Written++
	}

	return res, errors.Join(errs...)
}

// HandleMeasurement adapts Dispatch to the session's handler contract.
func (d *Dispatcher) HandleMeasurement(ctx context.Context, measurement map[string]json.RawMessage) error {
	res, err := d.Dispatch(ctx, measurement)
	d.obs.LogDebug("measurement dispatched",
		ports.F("written", res.Written),
		ports.F("skipped", res.Skipped),
		ports.F("sink_errors", res.SinkErrors))
	return err
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}
	if c := trimmed[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
