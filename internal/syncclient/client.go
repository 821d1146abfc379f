// Package syncclient connects a board to the relay. Local events are sent best
// effort and relayed events are handed to a callback; when the relay goes away
// the client keeps reconnecting without replaying what was missed.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/protocol"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const outboxSize = 256

// Handler receives every event relayed from the other participants.
type Handler func(ctx context.Context, env protocol.Envelope)

type Client struct {
	url     string
	logger  *slog.Logger
	handler Handler
	outbox  chan []byte

	connected atomic.Bool
	dropped   atomic.Int64

	// NewBackOff builds the reconnect schedule. The default never gives up.
	NewBackOff func() backoff.BackOff
}

func New(url string, logger *slog.Logger, handler Handler) *Client {
	return &Client{
		url:        url,
		logger:     logger.With(slog.String("relay", url)),
		handler:    handler,
		outbox:     make(chan []byte, outboxSize),
		NewBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Emit queues an event for the relay. It never blocks: while disconnected, or
// when the relay cannot keep up, the event is dropped.
func (c *Client) Emit(typ protocol.EventType, payload any) {
	if !c.connected.Load() {
		c.dropped.Add(1)
		return
	}

	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		c.logger.Error("failed to encode event", err, slog.String("event", string(typ)))
		return
	}

	select {
	case c.outbox <- frame:
	default:
		c.dropped.Add(1)
	}
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Dropped is how many events Emit has discarded so far.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Run keeps a connection to the relay until ctx is done or the back off
// schedule gives up.
func (c *Client) Run(ctx context.Context) error {
	b := c.NewBackOff()

	for {
		err := c.connect(ctx, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("relay unreachable: %w", err)
		}

		c.logger.Warn("relay connection lost", slog.String("error", err.Error()), slog.Duration("retry", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) connect(ctx context.Context, b backoff.BackOff) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}

	//goland:noinspection GoUnhandledErrorResult
	defer conn.Close(websocket.StatusNormalClosure, "")

	b.Reset()
	c.discard()
	c.connected.Store(true)
	defer c.connected.Store(false)

	c.logger.Info("connected")

	ec := make(chan error, 1)
	go func() {
		err := c.write(ctx, conn)
		cancel()
		ec <- err
	}()

	for {
		env := protocol.Envelope{}
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			cancel()
			if werr := <-ec; werr != nil && !errors.Is(werr, context.Canceled) {
				return werr
			}
			return err
		}

		c.handler(ctx, env)
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-c.outbox:
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return err
			}
		}
	}
}

// discard empties the outbox so nothing from a previous connection is sent.
func (c *Client) discard() {
	for {
		select {
		case <-c.outbox:
		default:
			return
		}
	}
}
