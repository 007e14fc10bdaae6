package sink

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CasaMack/tibber-subscribe/internal/domain"
)

type capturedWrite struct {
	path  string
	query map[string]string
	auth  string
	body  string
}

type influxStub struct {
	mu     sync.Mutex
	writes []capturedWrite
	status int
}

func (s *influxStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ping" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.writes = append(s.writes, capturedWrite{
		path: r.URL.Path,
		query: map[string]string{
			"org":    r.URL.Query().Get("org"),
			"bucket": r.URL.Query().Get("bucket"),
		},
		auth: r.Header.Get("Authorization"),
		body: string(body),
	})
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	if status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"invalid","message":"bad line"}`))
		return
	}
	w.WriteHeader(status)
}

func (s *influxStub) captured() []capturedWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedWrite(nil), s.writes...)
}

func TestInfluxSinkWritesLineProtocol(t *testing.T) {
	stub := &influxStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{Addr: srv.URL, Database: "tibber"})
	require.NoError(t, err)
	defer sink.Close()

	ts := time.Unix(1700000000, 0)
	err = sink.Write(context.Background(), domain.Point{
		Timestamp: ts,
		FieldName: "power",
		Value:     1234.5,
		Category:  "liveMeasurement",
	})
	require.NoError(t, err)

	writes := stub.captured()
	require.Len(t, writes, 1)
	assert.Equal(t, "/api/v2/write", writes[0].path)
	assert.Equal(t, "tibber", writes[0].query["bucket"])
	assert.Equal(t, "liveMeasurement,field_name=power value=1234.5 1700000000000000000", strings.TrimSpace(writes[0].body))
}

func TestInfluxSinkCompatibilityAuth(t *testing.T) {
	stub := &influxStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{
		Addr:            srv.URL,
		Database:        "tibber",
		RetentionPolicy: "autogen",
		Username:        "writer",
		Password:        "secret",
	})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), domain.Point{
		Timestamp: time.Now(), FieldName: "minPower", Value: 100, Category: "liveMeasurement",
	}))

	writes := stub.captured()
	require.Len(t, writes, 1)
	assert.Equal(t, "tibber/autogen", writes[0].query["bucket"])
	assert.Equal(t, "Token writer:secret", writes[0].auth)
}

func TestInfluxSinkReportsServerError(t *testing.T) {
	stub := &influxStub{status: http.StatusBadRequest}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{Addr: srv.URL, Org: "home", Bucket: "energy", Token: "t0k"})
	require.NoError(t, err)
	defer sink.Close()

	err = sink.Write(context.Background(), domain.Point{
		Timestamp: time.Now(), FieldName: "power", Value: 1, Category: "liveMeasurement",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "energy")
}

func TestInfluxSinkPing(t *testing.T) {
	srv := httptest.NewServer(&influxStub{})
	defer srv.Close()

	sink, err := NewInfluxSink(InfluxConfig{Addr: srv.URL, Bucket: "energy"})
	require.NoError(t, err)
	defer sink.Close()

	assert.NoError(t, sink.Ping(context.Background()))
	assert.Equal(t, "influxdb", sink.Name())
}

func TestInfluxConfigValidate(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{Database: "tibber"})
	assert.Error(t, err)

	_, err = NewInfluxSink(InfluxConfig{Addr: "http://localhost:8086"})
	assert.Error(t, err)
}

func TestInfluxSinkTimeoutRoundsUp(t *testing.T) {
	cases := map[time.Duration]uint{
		500 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		10 * time.Second:        10,
	}
	for in, want := range cases {
		assert.Equal(t, want, timeoutSeconds(in), "timeout %s", in)
	}

	s, err := NewInfluxSink(InfluxConfig{Addr: "http://127.0.0.1:1", Database: "tibber", Timeout: 250 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, uint(1), s.client.Options().HTTPRequestTimeout())
}
