package canvas

import (
	"image/color"
)

// Style describes how a path is painted. Alpha multiplies the color's own
// alpha; Dash is an on/off pattern in pixels, nil for a solid line.
type Style struct {
	Color color.Color
	Width float64
	Alpha float64
	Dash  []float64
}

// Surface is the 2-D drawing target. Paths follow the usual canvas model: a
// path is built with MoveTo/LineTo/Arc/Rect and painted with Stroke or Fill.
type Surface interface {
	Size() (int, int)

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Arc(cx, cy, r, start, end float64)
	Rect(x, y, w, h float64)
	ClosePath()

	Stroke(s Style)
	Fill(s Style)
	FillRect(x, y, w, h float64, c color.Color)
	ClearRect(x, y, w, h float64)

	// ToImage captures the whole surface. FromImage replaces the whole
	// surface with a capture taken earlier.
	ToImage() ([]byte, error)
	FromImage(b []byte) error
}
