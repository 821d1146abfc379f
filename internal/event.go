package internal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/protocol"
)

const (
	clusterChannel = "canvas:events"
	anonymous      = "Anonymous"
)

// Dispatch handles one frame read from connection id. Drawing events are
// passed on to everyone else tagged with the sender; cursor moves update the
// shared table, which is then sent to everyone else.
func Dispatch(
	ctx context.Context,
	logger *slog.Logger,
	state *State,
	rdb *redis.Client,
	instanceID, id string,
	b []byte,
) error {
	env, err := protocol.Decode(b)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch env.Type {
	case protocol.EventTypeCursorMove:
		move := protocol.CursorMove{}
		if err := decodeData(env, &move); err != nil {
			return err
		}

		cursor := protocol.CursorState{X: move.X, Y: move.Y, Name: move.Name}
		if cursor.Name == "" {
			cursor.Name = anonymous
		}

		if err := SetCursor(state, id, cursor); err != nil {
			return err
		}

		return publish(ctx, rdb, Event{Type: EventTypeCursor, Instance: instanceID, ID: id, Cursor: &cursor})

	case protocol.EventTypeDrawingStart, protocol.EventTypeDrawing:
		fields := map[string]json.RawMessage{}
		if err := decodeData(env, &fields); err != nil {
			return err
		}

		if fields == nil {
			return fmt.Errorf("decode %v: payload is not an object", env.Type)
		}

		sender, err := json.Marshal(id)
		if err != nil {
			return err
		}

		fields["id"] = sender
		return relay(ctx, logger, state, rdb, instanceID, id, env.Type, fields)

	case protocol.EventTypeDrawingEnd:
		return relay(ctx, logger, state, rdb, instanceID, id, env.Type, protocol.DrawingEnd{ID: id})

	default:
		logger.Warn("unknown event type", slog.String("event", string(env.Type)))
		return nil
	}
}

func relay(
	ctx context.Context,
	logger *slog.Logger,
	state *State,
	rdb *redis.Client,
	instanceID, id string,
	typ protocol.EventType,
	payload any,
) error {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}

	state.Lock.RLock()
	dropped := broadcastLocked(state, frame, id)
	state.Lock.RUnlock()

	if dropped > 0 {
		logger.Debug("dropped frames", slog.Int("count", dropped), slog.String("event", string(typ)))
	}

	return publish(ctx, rdb, Event{
		Type:     EventTypeFrame,
		Instance: instanceID,
		ID:       id,
		Payload:  base64.RawURLEncoding.EncodeToString(frame),
	})
}

// SetCursor records the cursor of id and sends the whole table to every other
// connection.
func SetCursor(state *State, id string, cursor protocol.CursorState) error {
	state.Lock.Lock()
	defer state.Lock.Unlock()

	state.Cursors[id] = cursor
	frame, err := protocol.Encode(protocol.EventTypeCursorsUpdate, state.Cursors)
	if err != nil {
		return err
	}

	broadcastLocked(state, frame, id)
	return nil
}

// RemoveCursor forgets the cursor of id and sends the table to everyone left.
func RemoveCursor(state *State, id string) error {
	state.Lock.Lock()
	defer state.Lock.Unlock()

	return removeCursorLocked(state, id)
}

func removeCursorLocked(state *State, id string) error {
	delete(state.Cursors, id)
	frame, err := protocol.Encode(protocol.EventTypeCursorsUpdate, state.Cursors)
	if err != nil {
		return err
	}

	broadcastLocked(state, frame, "")
	return nil
}

// broadcastLocked queues frame for every connection except exclude and returns
// how many connections had a full outbox. The caller holds state.Lock.
func broadcastLocked(state *State, frame []byte, exclude string) int {
	dropped := 0
	for id, connection := range state.Connections {
		if id == exclude {
			continue
		}

		select {
		case connection.Messages <- Message{Buffer: frame}:
		default:
			dropped++
		}
	}

	return dropped
}

func decodeData(env protocol.Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %v: %w", env.Type, err)
	}

	return nil
}

func publish(ctx context.Context, rdb *redis.Client, event Event) error {
	if rdb == nil {
		return nil
	}

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return rdb.Publish(ctx, clusterChannel, base64.RawURLEncoding.EncodeToString(b)).Err()
}

// SubscribeEvents applies what other relay instances publish so that
// participants connected to different instances see each other.
func SubscribeEvents(ctx context.Context, logger *slog.Logger, state *State, rdb *redis.Client, instanceID string) {
	sub := rdb.Subscribe(ctx, clusterChannel)
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			b, err := base64.RawURLEncoding.DecodeString(msg.Payload)
			if err != nil {
				logger.Error("failed to decode cluster event", err)
				continue
			}

			event := Event{}
			if err := json.Unmarshal(b, &event); err != nil {
				logger.Error("failed to unmarshal cluster event", err)
				continue
			}

			if event.Instance == instanceID {
				continue
			}

			switch event.Type {
			case EventTypeFrame:
				frame, err := base64.RawURLEncoding.DecodeString(event.Payload)
				if err != nil {
					logger.Warn("failed to decode payload", slog.String("connection", event.ID))
					continue
				}

				state.Lock.RLock()
				broadcastLocked(state, frame, event.ID)
				state.Lock.RUnlock()
			case EventTypeCursor:
				if event.Cursor == nil {
					continue
				}

				if err := SetCursor(state, event.ID, *event.Cursor); err != nil {
					logger.Error("failed to update cursor", err, slog.String("connection", event.ID))
				}
			case EventTypeLeave:
				if err := RemoveCursor(state, event.ID); err != nil {
					logger.Error("failed to remove cursor", err, slog.String("connection", event.ID))
				}
			default:
				logger.Warn("unknown event type", slog.String("event", string(event.Type)))
			}
		}
	}
}
