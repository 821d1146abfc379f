package internal

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

// Main builds the relay router. rdb may be nil for a single instance relay.
// Every connection is dropped once ctx is done.
func Main(
	logger *slog.Logger,
	ctx context.Context,
	instanceID string,
	rdb *redis.Client,
	originPatterns []string,
) (chi.Router, error) {
	state := NewState()

	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		go SubscribeEvents(ctx, logger, state, rdb, instanceID)
	}

	go func() {
		<-ctx.Done()
		DropAll(state)
	}()

	router := chi.NewRouter()
	router.Use(mid(instanceID))
	router.Get("/health", health())
	router.Get("/cursors", cursors(state))
	router.Get("/", JoinRoute(state, logger, rdb, instanceID, originPatterns))

	return router, nil
}

// DropAll asks every connection to close.
func DropAll(state *State) {
	state.Lock.RLock()
	defer state.Lock.RUnlock()

	for _, connection := range state.Connections {
		select {
		case connection.Messages <- Message{Drop: true}:
		default:
		}
	}
}

func health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func cursors(state *State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state.Lock.RLock()
		table := maps.Clone(state.Cursors)
		state.Lock.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(table)
	}
}

func mid(instanceID string) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", "manualpilot")
			w.Header().Set("Instance-ID", instanceID)
			handler.ServeHTTP(w, r)
		})
	}
}
