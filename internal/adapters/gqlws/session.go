// Package gqlws runs a single GraphQL subscription over a WebSocket.
//
// A Session dials the endpoint, sends the precomputed connection_init and
// subscribe frames, then reads until the connection fails or no frame
// arrives within the read timeout. It never reconnects on its own; callers
// call Run again.
package gqlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CasaMack/tibber-subscribe/internal/ports"
	"github.com/CasaMack/tibber-subscribe/internal/tibber"
)

var (
	ErrConnectFailed = errors.New("connect failed")
	ErrReadFailed    = errors.New("read failed")
	ErrTimeout       = errors.New("read timeout")
)

// SessionError is returned by Run for every session-fatal condition. Kind is
// one of ErrConnectFailed, ErrReadFailed or ErrTimeout.
type SessionError struct {
	Kind error
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("gqlws: %v: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// MeasurementHandler consumes the liveMeasurement object of a data frame.
// A returned error is logged; it never ends the session.
type MeasurementHandler interface {
	HandleMeasurement(ctx context.Context, measurement map[string]json.RawMessage) error
}

type Session struct {
	cfg     Config
	request tibber.SubscriptionRequest
	handler MeasurementHandler
	obs     ports.Observability
	dialer  *websocket.Dialer
}

func NewSession(cfg Config, request tibber.SubscriptionRequest, handler MeasurementHandler, obs ports.Observability) (*Session, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("measurement handler is required")
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Session{
		cfg:     cfg,
		request: request,
		handler: handler,
		obs:     obs,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			Subprotocols:      []string{cfg.Subprotocol},
			EnableCompression: cfg.EnableCompression,
		},
	}, nil
}

// Run performs one connect/handshake/stream cycle. It returns a
// *SessionError on failure, or ctx.Err() once ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	sid := ports.F("session", uuid.NewString())
	s.obs.LogDebug("establishing connection", sid, ports.F("endpoint", s.cfg.Endpoint))
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.Endpoint, s.requestHeader())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fields := []ports.Field{sid, ports.F("endpoint", s.cfg.Endpoint)}
		if resp != nil {
			fields = append(fields, ports.F("status", resp.Status))
			_ = resp.Body.Close()
		}
		s.obs.LogError("error on connect", err, fields...)
		return s.fail(&SessionError{Kind: ErrConnectFailed, Err: err})
	}
	defer conn.Close()

	s.obs.IncCounter(ports.MetricSessionsStarted, 1)
	s.obs.SetGauge(ports.GaugeSessionConnected, 1)
	defer s.obs.SetGauge(ports.GaugeSessionConnected, 0)
	s.logResponse(sid, resp)

	// Outbound failures are logged only; the read loop decides the session's fate.
	s.send(conn, "connection", s.request.Connection())
	s.send(conn, "subscription", s.request.Subscription())
	s.obs.LogInfo("subscription request sent", sid, ports.F("home_id", s.request.HomeID()))

	err = s.readLoop(ctx, conn)
	if ctx.Err() != nil {
		s.closeGracefully(conn)
		return ctx.Err()
	}
	s.obs.LogError("session ended", err, sid)
	return s.fail(err)
}

func (s *Session) fail(err error) error {
	s.obs.IncCounter(ports.MetricSessionFailures, 1)
	if errors.Is(err, ErrTimeout) {
		s.obs.IncCounter(ports.MetricSessionTimeouts, 1)
	}
	return err
}

type readResult struct {
	data []byte
	err  error
}

// readLoop issues one read at a time and races it against the read timeout
// and ctx. A read that loses the race is abandoned: its goroutine finishes
// when the connection is closed, and the buffered channel lets it exit
// without a receiver.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		results := make(chan readResult, 1)
		go func() {
			_, data, err := conn.ReadMessage()
			results <- readResult{data: data, err: err}
		}()

		timer := time.NewTimer(s.cfg.ReadTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			return &SessionError{Kind: ErrTimeout, Err: fmt.Errorf("no frame within %s", s.cfg.ReadTimeout)}
		case r := <-results:
			timer.Stop()
			if r.err != nil {
				return &SessionError{Kind: ErrReadFailed, Err: r.err}
			}
			s.handleFrame(ctx, conn, r.data)
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, conn *websocket.Conn, frame []byte) {
	s.obs.IncCounter(ports.MetricFramesReceived, 1)

	msg := tibber.Classify(frame)
	if len(msg.Errors) > 0 {
		s.obs.LogWarn("server reported errors", nil, ports.F("errors", rawList(msg.Errors)))
	}

	switch msg.Kind {
	case tibber.KindInvalid:
		s.obs.IncCounter(ports.MetricParseErrors, 1)
		s.obs.LogError("failed to parse message", msg.Err)
		s.obs.LogDebug("skipping message")
	case tibber.KindUnrecognized:
		s.obs.LogDebug("skipping message", ports.F("frame", string(frame)))
	case tibber.KindAck:
		s.obs.LogInfo("subscription request acknowledged")
	case tibber.KindAnomaly:
		s.obs.LogWarn("anomalous response type", nil, ports.F("type", msg.Type))
		s.obs.LogDebug("response", ports.F("frame", string(frame)))
		if msg.Type == "ping" && s.cfg.Subprotocol == ProtocolGraphQLTransportWS {
			s.send(conn, "pong", `{"type":"pong"}`)
		}
	case tibber.KindData:
		if err := s.handler.HandleMeasurement(ctx, msg.Measurement); err != nil {
			s.obs.LogWarn("skipped fields in measurement", err)
		}
		s.obs.LogDebug("received", ports.F("frame", string(frame)))
	}
}

func (s *Session) send(conn *websocket.Conn, what, frame string) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		s.obs.LogError("failed to request "+what, err)
	}
}

func (s *Session) closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		s.obs.LogDebug("close frame not sent", ports.F("error", err.Error()))
	}
}

func (s *Session) requestHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", s.cfg.UserAgent)
	if s.cfg.Origin != "" {
		h.Set("Origin", s.cfg.Origin)
	}
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	for k, v := range s.cfg.Headers {
		h.Set(k, v)
	}
	return h
}

func (s *Session) logResponse(sid ports.Field, resp *http.Response) {
	if resp == nil {
		return
	}
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	s.obs.LogInfo("connected to the server",
		sid,
		ports.F("status", resp.Status),
		ports.F("subprotocol", resp.Header.Get("Sec-WebSocket-Protocol")),
		ports.F("headers", names))
}

func rawList(items []json.RawMessage) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = string(item)
	}
	return out
}

var _ ports.Session = (*Session)(nil)
