package ports

// Metric names understood by Observability implementations.
const (
	MetricSessionsStarted = "tibber_sessions_started_total"
	MetricSessionFailures = "tibber_session_failures_total"
	MetricSessionTimeouts = "tibber_session_timeouts_total"
	MetricFramesReceived  = "tibber_frames_received_total"
	MetricParseErrors     = "tibber_parse_errors_total"
	MetricPointsWritten   = "tibber_points_written_total"
	MetricSinkErrors      = "tibber_sink_errors_total"
	MetricFieldsSkipped   = "tibber_fields_skipped_total"

	GaugeSessionConnected = "tibber_session_connected"
	GaugeReconnectDelay   = "tibber_reconnect_delay_seconds"

	HistogramSinkLatency = "tibber_sink_write_latency_seconds"
)
