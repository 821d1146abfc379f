package internal

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"golang.org/x/exp/slog"

	"nhooyr.io/websocket"
)

const (
	pingInterval = 45 * time.Second
	presenceTTL  = 90 * time.Second
)

// JoinRoute upgrades a participant, registers it and relays its frames until it
// leaves. When rdb is set the connection is also tracked in a presence hash
// and its events are shared with the other relay instances.
func JoinRoute(
	state *State,
	logger *slog.Logger,
	rdb *redis.Client,
	instanceID string,
	originPatterns []string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		now := time.Now()

		kid, err := ksuid.NewRandom()
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		id := kid.String()
		rid := fmt.Sprintf("ws:%v", id)
		log := logger.With(slog.String("id", id))

		opts := &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			return
		}

		//goland:noinspection GoUnhandledErrorResult
		defer conn.Close(websocket.StatusNormalClosure, "")

		if rdb != nil {
			data := map[string]string{
				"inst": instanceID,
				"join": strconv.Itoa(int(now.Unix())),
				"recv": "0",
				"sent": "0",
			}

			if err := rdb.HSet(ctx, rid, data).Err(); err != nil {
				log.Error("failed to register presence", err)
				_ = conn.Close(websocket.StatusInternalError, "presence")
				return
			}

			if err := rdb.Expire(ctx, rid, presenceTTL).Err(); err != nil {
				log.Error("failed to set presence expiry", err)
				_ = conn.Close(websocket.StatusInternalError, "presence")
				return
			}
		}

		connection := &Connection{Messages: make(chan Message, outboxSize)}

		state.Lock.Lock()
		state.Connections[id] = connection
		state.Lock.Unlock()

		log.Info("joined")

		reading := make(chan struct{})

		defer func() {
			cancel()
			<-reading

			state.Lock.Lock()
			delete(state.Connections, id)
			close(connection.Messages)
			err := removeCursorLocked(state, id)
			state.Lock.Unlock()

			if err != nil {
				log.Error("failed to remove cursor", err)
			}

			if rdb == nil {
				return
			}

			if err := publish(context.Background(), rdb, Event{Type: EventTypeLeave, Instance: instanceID, ID: id}); err != nil {
				log.Error("failed to announce leave", err)
			}

			if err := rdb.Del(context.Background(), rid).Err(); err != nil {
				log.Error("failed to cleanup", err)
			}
		}()

		go func() {
			defer close(reading)
			defer cancel()
			for {
				typ, b, err := conn.Read(ctx)
				if err != nil {
					return
				}

				if typ != websocket.MessageText {
					log.Warn("ignoring binary frame")
					continue
				}

				if err := Dispatch(ctx, log, state, rdb, instanceID, id, b); err != nil {
					log.Warn("failed to dispatch frame", slog.String("error", err.Error()))
					continue
				}

				if rdb == nil {
					continue
				}

				if err := rdb.HIncrBy(ctx, rid, "recv", 1).Err(); err != nil {
					log.Error("failed to update received messages stats", err)
					return
				}
			}
		}()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(pingInterval):
					if err := conn.Ping(ctx); err != nil {
						log.Error("failed to ping", err)
						_ = conn.Close(websocket.StatusAbnormalClosure, "hello?")
						return
					}

					if rdb == nil {
						continue
					}

					if err := rdb.Expire(ctx, rid, presenceTTL).Err(); err != nil {
						log.Error("failed extend exp", err)
						_ = conn.Close(websocket.StatusAbnormalClosure, "it broke")
						return
					}
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info("left")
				return
			case msg := <-connection.Messages:
				if msg.Drop {
					return
				}

				if err := conn.Write(ctx, websocket.MessageText, msg.Buffer); err != nil {
					log.Error("failed to write message", err)
					return
				}

				if rdb == nil {
					continue
				}

				if err := rdb.HIncrBy(ctx, rid, "sent", 1).Err(); err != nil {
					log.Error("failed to update sent messages stats", err)
					return
				}
			}
		}
	}
}
