package board

import (
	"fmt"

	"manualpilot/canvas/internal/canvas"
	"manualpilot/canvas/internal/protocol"
	"manualpilot/canvas/internal/shape"
)

type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
	ToolShape       Tool = "shape"
)

const (
	highlighterScale   = 2.5
	highlighterOpacity = 0.5
)

// Settings is the tool state shared by pointer input and commands.
type Settings struct {
	Tool    Tool
	Color   string
	Width   float64
	Opacity float64
	Dark    bool
	Shape   shape.Kind
}

func DefaultSettings() Settings {
	return Settings{
		Tool:    ToolPen,
		Color:   "#000000",
		Width:   5,
		Opacity: 1,
		Shape:   shape.KindRectangle,
	}
}

func (b *Board) selectTool(tool Tool, kind shape.Kind) error {
	switch tool {
	case ToolPen, ToolHighlighter, ToolEraser, ToolShape:
	default:
		return fmt.Errorf("unknown tool %q", tool)
	}

	if b.state != StateIdle {
		return ErrBusy
	}

	b.settings.Tool = tool
	if kind != "" {
		b.settings.Shape = kind
	}
	return nil
}

func (s Settings) freehand() bool {
	return s.Tool == ToolPen || s.Tool == ToolHighlighter || s.Tool == ToolEraser
}

// strokeStyle is how one segment of a freehand stroke is painted. Remote
// strokes use the same rules with the sender's parameters and the local
// background for the eraser.
func strokeStyle(tool Tool, color string, width, opacity float64, dark bool) canvas.Style {
	switch tool {
	case ToolHighlighter:
		return canvas.Style{Color: canvas.Lookup(color), Width: width * highlighterScale, Alpha: opacity}
	case ToolEraser:
		return canvas.Style{Color: canvas.Background(dark), Width: width, Alpha: 1}
	default:
		return canvas.Style{Color: canvas.Lookup(color), Width: width, Alpha: 1}
	}
}

func (s Settings) stroke(x, y float64) protocol.Stroke {
	return protocol.Stroke{
		X:         x,
		Y:         y,
		Color:     s.Color,
		LineWidth: s.Width,
		Opacity:   s.Opacity,
		Tool:      string(s.Tool),
	}
}
