package internal

import (
	"sync"

	"manualpilot/canvas/internal/protocol"
)

// outboxSize is how many frames a slow participant may fall behind before
// frames addressed to it are dropped.
const outboxSize = 64

type Message struct {
	Drop   bool
	Buffer []byte
}

type Connection struct {
	Messages chan Message
}

// State is the relay's view of the session. Lock guards both maps.
type State struct {
	Lock        sync.RWMutex
	Connections map[string]*Connection
	Cursors     protocol.Cursors
}

func NewState() *State {
	return &State{
		Lock:        sync.RWMutex{},
		Connections: make(map[string]*Connection),
		Cursors:     make(protocol.Cursors),
	}
}

// EventType tags what one relay instance tells the others over redis.
type EventType string

const (
	EventTypeFrame  EventType = "frame"
	EventTypeCursor EventType = "cursor"
	EventTypeLeave  EventType = "leave"
)

type Event struct {
	Type     EventType             `json:"type"`
	Instance string                `json:"instance"`
	ID       string                `json:"id"`
	Cursor   *protocol.CursorState `json:"cursor,omitempty"`
	Payload  string                `json:"payload,omitempty"`
}
