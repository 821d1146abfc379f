package shape

import (
	"math"

	"manualpilot/canvas/internal/canvas"
)

func (e *Engine) render(p Params, preview bool) {
	lineWidth := p.LineWidth
	if lineWidth <= 0 {
		lineWidth = DefaultLineWidth
	}

	stroke := canvas.Style{Color: canvas.Lookup(p.Color), Width: lineWidth, Alpha: 1}
	if preview {
		stroke.Dash = previewDash
	}

	s := e.surface
	s.BeginPath()

	filled := true
	switch p.Kind {
	case KindCircle:
		s.Arc(p.X+p.Radius, p.Y+p.Radius, p.Radius, 0, 2*math.Pi)
	case KindRectangle:
		s.Rect(p.X, p.Y, p.Width, p.Height)
	case KindSquare:
		side := math.Min(math.Abs(p.Width), math.Abs(p.Height))
		s.Rect(p.X, p.Y, side, side)
	case KindStar:
		star(s, p)
	case KindTriangle:
		s.MoveTo(p.X+p.Width/2, p.Y)
		s.LineTo(p.X, p.Y+p.Height)
		s.LineTo(p.X+p.Width, p.Y+p.Height)
		s.ClosePath()
	case KindLine:
		filled = false
		s.MoveTo(p.X, p.Y)
		s.LineTo(p.X+p.Width, p.Y+p.Height)
	case KindArrow:
		filled = false
		arrow(s, p, lineWidth)
	}

	if filled && !preview {
		s.Fill(canvas.Style{Color: stroke.Color, Alpha: 1})
	}
	s.Stroke(stroke)
}

// star traces a five pointed star pointing up, alternating between the outer
// and inner radius every π/5.
func star(s canvas.Surface, p Params) {
	outer := math.Min(math.Abs(p.Width), math.Abs(p.Height)) / 2
	inner := outer / 2
	cx, cy := p.X+outer, p.Y+outer

	for i := 0; i < 10; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}

		a := 3*math.Pi/2 + float64(i)*math.Pi/5
		x, y := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if i == 0 {
			s.MoveTo(x, y)
		} else {
			s.LineTo(x, y)
		}
	}

	s.ClosePath()
}

func arrow(s canvas.Surface, p Params, lineWidth float64) {
	x2, y2 := p.X+p.Width, p.Y+p.Height
	head := math.Max(10, lineWidth*3)
	angle := math.Atan2(p.Height, p.Width)

	s.MoveTo(p.X, p.Y)
	s.LineTo(x2, y2)
	s.MoveTo(x2, y2)
	s.LineTo(x2-head*math.Cos(angle-math.Pi/6), y2-head*math.Sin(angle-math.Pi/6))
	s.MoveTo(x2, y2)
	s.LineTo(x2-head*math.Cos(angle+math.Pi/6), y2-head*math.Sin(angle+math.Pi/6))
}
