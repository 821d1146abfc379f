package syncclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal"
	"manualpilot/canvas/internal/protocol"
)

const defaultWaitTime = 100 * time.Millisecond

func discard() *slog.Logger {
	return slog.New(slog.HandlerOptions{Level: slog.LevelError}.NewTextHandler(io.Discard))
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(20 * time.Millisecond)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClientsExchangeEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := internal.Main(discard(), ctx, "test", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(router)
	defer server.Close()

	received := make(chan protocol.Envelope, 8)

	a := New(server.URL, discard(), func(ctx context.Context, env protocol.Envelope) {})
	b := New(server.URL, discard(), func(ctx context.Context, env protocol.Envelope) {
		received <- env
	})

	go a.Run(ctx)
	go b.Run(ctx)

	waitFor(t, func() bool { return a.Connected() && b.Connected() })
	time.Sleep(defaultWaitTime)

	a.Emit(protocol.EventTypeDrawingStart, protocol.Stroke{X: 1, Y: 2, Color: "red", LineWidth: 4, Opacity: 1, Tool: "pen"})

	select {
	case env := <-received:
		if env.Type != protocol.EventTypeDrawingStart {
			t.Fatalf("unexpected event %v", env.Type)
		}

		s := protocol.Stroke{}
		if err := json.Unmarshal(env.Data, &s); err != nil {
			t.Fatal(err)
		}

		if s.ID == "" || s.X != 1 || s.Color != "red" {
			t.Errorf("unexpected stroke %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestEmitWhileDisconnectedIsDropped(t *testing.T) {
	c := New("ws://127.0.0.1:1/", discard(), func(ctx context.Context, env protocol.Envelope) {})

	c.Emit(protocol.EventTypeDrawingEnd, protocol.DrawingEnd{})

	if c.Dropped() != 1 || len(c.outbox) != 0 {
		t.Error("events emitted while disconnected must be dropped")
	}
}

func TestReconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := internal.Main(discard(), ctx, "test", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	// reserve an address nothing listens on yet
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	c := New("ws://"+addr+"/", discard(), func(ctx context.Context, env protocol.Envelope) {})
	c.NewBackOff = fastBackOff

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(defaultWaitTime)
	if c.Connected() {
		t.Fatal("connected before the relay was up")
	}

	server := httptest.NewUnstartedServer(router)
	_ = server.Listener.Close()
	server.Listener, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}

	server.Start()
	defer server.Close()

	waitFor(t, c.Connected)

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGivesUp(t *testing.T) {
	c := New("ws://127.0.0.1:1/", discard(), func(ctx context.Context, env protocol.Envelope) {})
	c.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(fastBackOff(), 2)
	}

	if err := c.Run(context.Background()); err == nil {
		t.Error("expected an error once retries are exhausted")
	}
}
