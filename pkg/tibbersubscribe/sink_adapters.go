package tibbersubscribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("tibbersubscribe: channel sink closed")

// PointSink is invoked once per dispatched point.
type PointSink func(Point) error

// NewCallbackSink adapts a PointSink into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn PointSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes points via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Point, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Point, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, s.close
}

type callbackSink struct {
	name string
	fn   PointSink
}

func (s *callbackSink) Write(_ context.Context, p Point) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(p)
}

func (s *callbackSink) Name() string { return s.name }
func (s *callbackSink) Close() error { return nil }

type channelSink struct {
	name   string
	ch     chan Point
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

// Write blocks until the point is received, ctx is done or the sink is closed.
func (s *channelSink) Write(ctx context.Context, p Point) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- p:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) Close() error {
	s.close()
	return nil
}

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		// Wait for in-flight writers before closing the data channel.
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
