package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exposition = `# HELP tibber_points_written_total Measurement points accepted by the sink.
# TYPE tibber_points_written_total counter
tibber_points_written_total 42
# HELP tibber_session_connected 1 while a subscription session is streaming.
# TYPE tibber_session_connected gauge
tibber_session_connected 1
# HELP tibber_sink_write_latency_seconds Time spent in a single sink write.
# TYPE tibber_sink_write_latency_seconds histogram
tibber_sink_write_latency_seconds_bucket{le="+Inf"} 42
tibber_sink_write_latency_seconds_sum 0.5
tibber_sink_write_latency_seconds_count 42
`

func TestParseSnapshot(t *testing.T) {
	values, err := parseSnapshot(strings.NewReader(exposition))
	require.NoError(t, err)
	assert.Equal(t, 42.0, values["tibber_points_written_total"])
	assert.Equal(t, 1.0, values["tibber_session_connected"])
	_, ok := values["tibber_sink_write_latency_seconds"]
	assert.False(t, ok)
}

func TestPrintMetricsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(exposition))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, printMetricsSnapshot(context.Background(), srv.URL, &out))
	assert.Contains(t, out.String(), "connected=1")
	assert.Contains(t, out.String(), "points=42")
	assert.Contains(t, out.String(), "failures=0")
}

func TestPrintMetricsSnapshotBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := printMetricsSnapshot(context.Background(), srv.URL, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFieldsCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, fieldsCommand(&out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 28)
	assert.Contains(t, lines[1], "timestamp")
	assert.Contains(t, lines[1], "no (non-numeric)")
	assert.Contains(t, lines[2], "power")
	assert.Contains(t, lines[2], "yes")
}

func TestValidateCommand(t *testing.T) {
	t.Setenv("TIBBER_API_ENDPOINT", "wss://example.test/subscriptions")
	t.Setenv("TIBBER_TOKEN", "tok")
	t.Setenv("HOME_ID", "home-1")
	t.Setenv("INFLUXDB_ADDR", "http://localhost:8086")
	t.Setenv("INFLUXDB_DB_NAME", "tibber")
	t.Setenv("TIBBER_FIELDS", "")

	var out bytes.Buffer
	require.NoError(t, validateCommand(nil, &out))
	assert.Contains(t, out.String(), "config ok")
	assert.Contains(t, out.String(), "home=home-1")
	assert.Contains(t, out.String(), "sink=influxdb")
}

func TestValidateCommandFails(t *testing.T) {
	t.Setenv("TIBBER_API_ENDPOINT", "")
	t.Setenv("TIBBER_TOKEN", "tok")
	t.Setenv("HOME_ID", "home-1")

	err := validateCommand([]string{"--config", ""}, &bytes.Buffer{})
	assert.Error(t, err)
}
