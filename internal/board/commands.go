package board

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/command"
	"manualpilot/canvas/internal/shape"
)

func (b *Board) apply(ctx context.Context, cmd command.Command) error {
	switch c := cmd.(type) {
	case command.Draw:
		b.settings.Tool = ToolPen
		if c.Color != "" {
			b.settings.Color = c.Color
		}
		if w := command.Or(c.Width, 0); w > 0 {
			b.settings.Width = w
		}
		return nil

	case command.Highlight:
		b.settings.Tool = ToolHighlighter
		b.settings.Opacity = highlighterOpacity
		if o := command.Or(c.Opacity, 0); o > 0 {
			b.settings.Opacity = o
		}
		if c.Color != "" {
			b.settings.Color = c.Color
		}
		return nil

	case command.Erase:
		b.settings.Tool = ToolEraser
		return nil

	case command.DrawShape:
		return b.drawShape(c)

	case command.Move:
		if command.Absent(c.X) || command.Absent(c.Y) {
			return nil
		}
		_, err := b.shapes.Move(c.ShapeID, c.X, c.Y)
		return b.changed(err)

	case command.Delete:
		_, err := b.shapes.Delete(c.ShapeID)
		return b.changed(err)

	case command.Clear:
		b.paintBackground()
		b.shapes.Reset()
		return b.commit()

	case command.Undo:
		_, err := b.history.Undo()
		return b.changed(err)

	case command.Redo:
		_, err := b.history.Redo()
		return b.changed(err)

	case command.Download:
		return b.download(ctx)

	case command.Theme:
		dark := c.Mode == "dark"
		if dark == b.settings.Dark {
			return nil
		}

		b.settings.Dark = dark
		b.paintBackground()
		b.shapes.Reset()
		return b.commit()

	case command.Error:
		b.logger.Warn("command rejected", slog.String("reason", c.Message))
		return nil

	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

func (b *Board) drawShape(c command.DrawShape) error {
	if command.Absent(c.X) || command.Absent(c.Y) {
		b.logger.Warn("shape without position", slog.String("shape", c.Shape))
		return nil
	}

	color := c.Color
	if color == "" {
		color = b.settings.Color
	}

	rec, err := b.shapes.Place(shape.Params{
		Kind:      shape.Kind(c.Shape),
		X:         c.X,
		Y:         c.Y,
		Radius:    command.Or(c.Radius, shape.DefaultRadius),
		Width:     command.Or(c.Width, shape.DefaultSize),
		Height:    command.Or(c.Height, shape.DefaultSize),
		Color:     color,
		LineWidth: shape.DefaultLineWidth,
	}, false)
	if err != nil {
		return err
	}

	b.logger.Info("placed shape", slog.String("id", rec.ID))
	b.touched()
	return nil
}

func (b *Board) download(ctx context.Context) error {
	if b.exporter == nil {
		b.logger.Warn("download is not configured")
		return nil
	}

	snapshot, err := b.surface.ToImage()
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	location, err := b.exporter.Export(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	b.logger.Info("downloaded", slog.String("location", location))
	return nil
}

// changed marks the surface dirty after an engine or history call that may
// have repainted it.
func (b *Board) changed(err error) error {
	if err != nil {
		return err
	}

	b.touched()
	return nil
}
