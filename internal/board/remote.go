package board

import (
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/protocol"
)

// applyRemote paints what other participants are drawing. Remote strokes are
// not committed; the next local commit captures them.
func (b *Board) applyRemote(env protocol.Envelope) error {
	switch env.Type {
	case protocol.EventTypeDrawingStart:
		s := protocol.Stroke{}
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return fmt.Errorf("decode %v: %w", env.Type, err)
		}

		b.remote[s.ID] = point{s.X, s.Y}

	case protocol.EventTypeDrawing:
		s := protocol.Stroke{}
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return fmt.Errorf("decode %v: %w", env.Type, err)
		}

		from, ok := b.remote[s.ID]
		b.remote[s.ID] = point{s.X, s.Y}
		if !ok {
			return nil
		}

		b.surface.BeginPath()
		b.surface.MoveTo(from.x, from.y)
		b.surface.LineTo(s.X, s.Y)
		b.surface.Stroke(strokeStyle(Tool(s.Tool), s.Color, s.LineWidth, s.Opacity, b.settings.Dark))
		b.touched()

	case protocol.EventTypeDrawingEnd:
		end := protocol.DrawingEnd{}
		if err := json.Unmarshal(env.Data, &end); err != nil {
			return fmt.Errorf("decode %v: %w", env.Type, err)
		}

		delete(b.remote, end.ID)

	case protocol.EventTypeCursorsUpdate:
		cursors := protocol.Cursors{}
		if err := json.Unmarshal(env.Data, &cursors); err != nil {
			return fmt.Errorf("decode %v: %w", env.Type, err)
		}

		b.cursors = cursors

	default:
		b.logger.Debug("ignoring event", slog.String("type", string(env.Type)))
	}

	return nil
}
