package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// snapshotMetrics are printed by the stats command, in this order.
var snapshotMetrics = []struct {
	name  string
	label string
}{
	{"tibber_session_connected", "connected"},
	{"tibber_sessions_started_total", "sessions"},
	{"tibber_session_failures_total", "failures"},
	{"tibber_frames_received_total", "frames"},
	{"tibber_points_written_total", "points"},
	{"tibber_sink_errors_total", "sink_errors"},
	{"tibber_fields_skipped_total", "skipped"},
	{"tibber_reconnect_delay_seconds", "backoff_s"},
}

func printMetricsSnapshot(ctx context.Context, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseSnapshot(resp.Body)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s]", time.Now().Format(time.RFC3339))
	for _, m := range snapshotMetrics {
		fmt.Fprintf(out, " %s=%g", m.label, values[m.name])
	}
	fmt.Fprintln(out)
	return nil
}

// parseSnapshot reads the Prometheus text exposition and returns the
// unlabelled counter and gauge values it contains.
func parseSnapshot(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	values := make(map[string]float64, len(families))
	for name, family := range families {
		for _, m := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				values[name] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				values[name] += m.GetGauge().GetValue()
			}
		}
	}
	return values, nil
}
