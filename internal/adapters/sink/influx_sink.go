package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/CasaMack/tibber-subscribe/internal/domain"
	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

// FieldNameTag is the tag carrying domain.Point.FieldName.
const FieldNameTag = "field_name"

// InfluxConfig selects an InfluxDB target. Database (and optionally
// RetentionPolicy) addresses a 1.8 server through its v2 compatibility
// endpoint; Org and Bucket address a 2.x server.
type InfluxConfig struct {
	Addr            string        `yaml:"addr"`
	Database        string        `yaml:"database"`
	RetentionPolicy string        `yaml:"retention_policy"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Token           string        `yaml:"token"`
	Org             string        `yaml:"org"`
	Bucket          string        `yaml:"bucket"`
	Timeout         time.Duration `yaml:"timeout"`
}

func (c *InfluxConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *InfluxConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("influxdb addr is required")
	}
	if c.Bucket == "" && c.Database == "" {
		return errors.New("influxdb bucket or database is required")
	}
	return nil
}

func (c InfluxConfig) bucket() string {
	if c.Bucket != "" {
		return c.Bucket
	}
	if c.RetentionPolicy != "" {
		return c.Database + "/" + c.RetentionPolicy
	}
	return c.Database
}

func (c InfluxConfig) authToken() string {
	if c.Token != "" {
		return c.Token
	}
	if c.Username != "" {
		return c.Username + ":" + c.Password
	}
	return ""
}

// InfluxSink writes each point as one line: measurement = category,
// tag field_name, field value.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	target string
}

func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(timeoutSeconds(cfg.Timeout))
	client := influxdb2.NewClientWithOptions(cfg.Addr, cfg.authToken(), opts)
	bucket := cfg.bucket()
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, bucket),
		target: bucket,
	}, nil
}

// timeoutSeconds rounds up to whole seconds; the client reads 0 as no timeout.
func timeoutSeconds(d time.Duration) uint {
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return uint(secs)
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Write(ctx context.Context, p domain.Point) error {
	point := influxdb2.NewPoint(
		p.Category,
		map[string]string{FieldNameTag: p.FieldName},
		map[string]interface{}{"value": p.Value},
		p.Timestamp,
	)
	if err := s.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influxdb write %s: %w", s.target, err)
	}
	return nil
}

// Ping reports whether the server answers its ping endpoint.
func (s *InfluxSink) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !ok {
		return errors.New("influxdb ping: server not ready")
	}
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

var _ ports.Sink = (*InfluxSink)(nil)
