package board

import (
	"context"
	"math"

	"manualpilot/canvas/internal/protocol"
	"manualpilot/canvas/internal/shape"
)

func (b *Board) pointerDown(ctx context.Context, ev Event) error {
	if b.settings.Tool == ToolShape {
		b.state = StateShapePreviewing
		b.anchor = point{ev.X, ev.Y}
		return nil
	}

	if !b.settings.freehand() {
		return nil
	}

	b.state = StateStroking
	b.last = point{ev.X, ev.Y}
	b.surface.BeginPath()
	b.surface.MoveTo(ev.X, ev.Y)

	b.emitter.Emit(protocol.EventTypeDrawingStart, b.settings.stroke(ev.X, ev.Y))
	return nil
}

func (b *Board) hover(ctx context.Context, ev Event) error {
	b.emitCursor(ev)
	return nil
}

func (b *Board) extendStroke(ctx context.Context, ev Event) error {
	s := b.settings
	b.surface.BeginPath()
	b.surface.MoveTo(b.last.x, b.last.y)
	b.surface.LineTo(ev.X, ev.Y)
	b.surface.Stroke(strokeStyle(s.Tool, s.Color, s.Width, s.Opacity, s.Dark))
	b.last = point{ev.X, ev.Y}

	b.emitter.Emit(protocol.EventTypeDrawing, s.stroke(ev.X, ev.Y))
	b.emitCursor(ev)
	b.touched()
	return nil
}

func (b *Board) endStroke(ctx context.Context, ev Event) error {
	b.state = StateIdle
	b.emitter.Emit(protocol.EventTypeDrawingEnd, protocol.DrawingEnd{})
	return b.commit()
}

// previewShape repaints the last committed state and draws a dashed outline
// from the anchor to the pointer on top of it.
func (b *Board) previewShape(ctx context.Context, ev Event) error {
	if err := b.history.Restore(); err != nil {
		return err
	}

	_, err := b.shapes.Place(b.dragParams(ev), true)
	b.emitCursor(ev)
	return err
}

// placeShape finishes a drag. A release where the drag started places nothing.
func (b *Board) placeShape(ctx context.Context, ev Event) error {
	if ev.X == b.anchor.x && ev.Y == b.anchor.y {
		return b.cancelShape(ctx, ev)
	}

	b.state = StateIdle
	if err := b.history.Restore(); err != nil {
		return err
	}

	rec, err := b.shapes.Place(b.dragParams(ev), false)
	if err != nil {
		return err
	}

	b.logger.Debug("placed shape", "id", rec.ID)
	b.touched()
	return nil
}

func (b *Board) cancelShape(ctx context.Context, ev Event) error {
	b.state = StateIdle
	return b.history.Restore()
}

func (b *Board) dragParams(ev Event) shape.Params {
	w, h := ev.X-b.anchor.x, ev.Y-b.anchor.y
	return shape.Params{
		Kind:      b.settings.Shape,
		X:         b.anchor.x,
		Y:         b.anchor.y,
		Width:     w,
		Height:    h,
		Radius:    math.Min(math.Abs(w), math.Abs(h)) / 2,
		Color:     b.settings.Color,
		LineWidth: b.settings.Width,
	}
}

func (b *Board) emitCursor(ev Event) {
	name := b.name
	if name == "" {
		name = "Anonymous"
	}

	b.emitter.Emit(protocol.EventTypeCursorMove, protocol.CursorMove{X: ev.X, Y: ev.Y, Name: name})
}

func (b *Board) commit() error {
	if err := b.history.Commit(); err != nil {
		return err
	}

	b.touched()
	return nil
}
