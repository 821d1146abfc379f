package command

import (
	"math"
)

const InvalidFormat = "Invalid command format"

// Command is one parsed edit intent. Each action has its own type so consumers
// switch on the concrete type instead of probing optional fields.
type Command interface {
	Action() string
}

type (
	// Draw selects the pen. Width is NaN when not given.
	Draw struct {
		Color string
		Width float64
	}

	// DrawShape places a shape. Numeric fields are NaN when absent or unparseable.
	DrawShape struct {
		Shape  string
		X      float64
		Y      float64
		Radius float64
		Width  float64
		Height float64
		Color  string
	}

	Highlight struct {
		Color   string
		Opacity float64
	}

	Move struct {
		ShapeID string
		X       float64
		Y       float64
	}

	Delete struct {
		ShapeID string
	}

	Erase    struct{}
	Clear    struct{}
	Undo     struct{}
	Redo     struct{}
	Download struct{}

	Theme struct {
		Mode string
	}

	Error struct {
		Message string
	}
)

func (Draw) Action() string { return "draw" }
func (DrawShape) Action() string { return "drawShape" }
func (Highlight) Action() string { return "highlight" }
func (Move) Action() string { return "move" }
func (Delete) Action() string { return "delete" }
func (Erase) Action() string { return "erase" }
func (Clear) Action() string { return "clear" }
func (Undo) Action() string { return "undo" }
func (Redo) Action() string { return "redo" }
func (Download) Action() string { return "download" }
func (Theme) Action() string { return "theme" }
func (Error) Action() string { return "error" }

// Absent reports whether a numeric parameter was missing or failed to parse.
func Absent(v float64) bool {
	return math.IsNaN(v)
}

// Or returns v, or fallback when v is absent.
func Or(v, fallback float64) float64 {
	if Absent(v) {
		return fallback
	}
	return v
}
