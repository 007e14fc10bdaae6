package tibbersubscribe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Point
	sink := NewCallbackSink("cb", func(p Point) error {
		received = append(received, p)
		return nil
	})

	input := Point{
		Timestamp: time.Unix(1, 0),
		FieldName: "power",
		Value:     1234.5,
		Category:  Category,
	}

	if err := sink.Write(context.Background(), input); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 point, got %d", len(received))
	}
	if received[0] != input {
		t.Fatalf("mismatched point: %+v vs %+v", received[0], input)
	}
	if sink.Name() != "cb" {
		t.Fatalf("expected name cb, got %s", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
	if err := sink.Write(context.Background(), Point{FieldName: "power"}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := Point{FieldName: "currentL1", Value: 7, Category: Category}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.Write(context.Background(), input)
	}()

	var got Point
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel point")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if got != input {
		t.Fatalf("unexpected point: %+v", got)
	}

	closeFn()
	if err := sink.Write(context.Background(), input); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSinkUnblocksOnClose(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.Write(context.Background(), Point{FieldName: "power"})
	}()

	time.Sleep(20 * time.Millisecond)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked writer was not released")
	}
}

func TestChannelSinkHonoursContext(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sink.Write(ctx, Point{FieldName: "power"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
