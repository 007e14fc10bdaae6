package gqlws

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// ProtocolGraphQLWS is the legacy subscriptions-transport-ws subprotocol.
	ProtocolGraphQLWS = "graphql-ws"
	// ProtocolGraphQLTransportWS is the graphql-ws library subprotocol.
	ProtocolGraphQLTransportWS = "graphql-transport-ws"

	DefaultReadTimeout      = 10 * time.Second
	DefaultHandshakeTimeout = 45 * time.Second
	DefaultUserAgent        = "tibber-subscribe/1.0"
)

// Config captures the transport details of a subscription session.
type Config struct {
	Endpoint          string            `yaml:"endpoint"`
	Subprotocol       string            `yaml:"subprotocol"`
	ReadTimeout       time.Duration     `yaml:"read_timeout"`
	HandshakeTimeout  time.Duration     `yaml:"handshake_timeout"`
	UserAgent         string            `yaml:"user_agent"`
	Origin            string            `yaml:"origin"`
	Headers           map[string]string `yaml:"headers"`
	EnableCompression bool              `yaml:"enable_compression"`
}

func (c *Config) ApplyDefaults() {
	if c.Subprotocol == "" {
		c.Subprotocol = ProtocolGraphQLTransportWS
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	switch c.Subprotocol {
	case ProtocolGraphQLWS, ProtocolGraphQLTransportWS:
	default:
		return fmt.Errorf("unsupported subprotocol %q", c.Subprotocol)
	}
	for name := range c.Headers {
		if _, reserved := handshakeHeaders[http.CanonicalHeaderKey(name)]; reserved {
			return fmt.Errorf("header %q is set by the websocket handshake", name)
		}
	}
	return nil
}

// handshakeHeaders are generated by the dialer and may not be overridden.
var handshakeHeaders = map[string]struct{}{
	"Upgrade":                  {},
	"Connection":               {},
	"Sec-Websocket-Key":        {},
	"Sec-Websocket-Version":    {},
	"Sec-Websocket-Extensions": {},
	"Sec-Websocket-Protocol":   {},
}
