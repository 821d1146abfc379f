package protocol

import (
	"encoding/json"
)

type EventType string

const (
	EventTypeCursorMove    EventType = "cursor-move"
	EventTypeCursorsUpdate EventType = "cursors-update"
	EventTypeDrawingStart  EventType = "drawing-start"
	EventTypeDrawing       EventType = "drawing"
	EventTypeDrawingEnd    EventType = "drawing-end"
)

// Envelope is the frame exchanged between the relay and its participants.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CursorMove struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

type CursorState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Name string  `json:"name"`
}

// Cursors maps a connection id to the last known cursor of that participant.
type Cursors map[string]CursorState

// Stroke is the payload of drawing-start and drawing. ID is empty when sent by a
// participant and holds the sender's connection id once relayed.
type Stroke struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Opacity   float64 `json:"opacity"`
	Tool      string  `json:"tool"`
	ID        string  `json:"id,omitempty"`
}

type DrawingEnd struct {
	ID string `json:"id,omitempty"`
}

func Encode(typ EventType, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = b
	}

	return json.Marshal(env)
}

func Decode(b []byte) (Envelope, error) {
	env := Envelope{}
	err := json.Unmarshal(b, &env)
	return env, err
}
