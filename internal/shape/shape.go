package shape

import (
	"fmt"
	"math"

	"manualpilot/canvas/internal/canvas"
)

type Kind string

const (
	KindCircle    Kind = "circle"
	KindRectangle Kind = "rectangle"
	KindSquare    Kind = "square"
	KindStar      Kind = "star"
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindTriangle  Kind = "triangle"
)

const (
	DefaultRadius    = 50
	DefaultSize      = 100
	DefaultLineWidth = 2

	clearMargin = 2
)

var previewDash = []float64{6, 4}

// Record is a placed shape. Width and Height keep the values the shape was
// placed with; Radius is only meaningful for circles.
type Record struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"kind"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Radius    float64 `json:"radius"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
}

type Params struct {
	Kind      Kind
	X, Y      float64
	Width     float64
	Height    float64
	Radius    float64
	Color     string
	LineWidth float64
}

// Committer records a committed surface change.
type Committer interface {
	Commit() error
}

// Engine owns the registry of placed shapes and paints them.
type Engine struct {
	surface   canvas.Surface
	committer Committer
	records   []*Record
	counter   int
}

func NewEngine(surface canvas.Surface, committer Committer) *Engine {
	return &Engine{surface: surface, committer: committer}
}

// Place paints a shape. A preview is a dashed outline that leaves the registry
// and history untouched and returns nil; otherwise the shape is filled,
// committed and then registered under a fresh id. A failed commit leaves the
// registry as it was.
func (e *Engine) Place(p Params, preview bool) (*Record, error) {
	switch p.Kind {
	case KindCircle, KindRectangle, KindSquare, KindStar, KindLine, KindArrow, KindTriangle:
	default:
		return nil, fmt.Errorf("unknown shape %q", p.Kind)
	}

	e.render(p, preview)
	if preview {
		return nil, nil
	}

	rec := &Record{
		ID:        fmt.Sprintf("%v_%v", p.Kind, e.counter+1),
		Kind:      p.Kind,
		X:         p.X,
		Y:         p.Y,
		Width:     p.Width,
		Height:    p.Height,
		Radius:    p.Radius,
		Color:     p.Color,
		LineWidth: p.LineWidth,
	}

	if err := e.committer.Commit(); err != nil {
		return nil, err
	}

	e.counter++
	e.records = append(e.records, rec)

	c := *rec
	return &c, nil
}

// Move repaints the shape at (x, y). It reports false and does nothing when
// no shape has that id.
func (e *Engine) Move(id string, x, y float64) (bool, error) {
	rec := e.find(id)
	if rec == nil {
		return false, nil
	}

	e.clear(*rec)
	rec.X, rec.Y = x, y
	e.render(rec.params(), false)

	return true, e.committer.Commit()
}

// Delete erases the shape's area and forgets it. Unknown ids are a no-op.
func (e *Engine) Delete(id string) (bool, error) {
	for i, rec := range e.records {
		if rec.ID != id {
			continue
		}

		e.clear(*rec)
		e.records = append(e.records[:i], e.records[i+1:]...)
		return true, e.committer.Commit()
	}

	return false, nil
}

func (e *Engine) Get(id string) (Record, bool) {
	rec := e.find(id)
	if rec == nil {
		return Record{}, false
	}
	return *rec, true
}

// Records returns the placed shapes in creation order.
func (e *Engine) Records() []Record {
	out := make([]Record, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, *rec)
	}
	return out
}

// Reset forgets every shape without touching the surface. Ids keep counting.
func (e *Engine) Reset() {
	e.records = nil
}

func (e *Engine) find(id string) *Record {
	for _, rec := range e.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (e *Engine) clear(rec Record) {
	x, y, w, h := Bounds(rec)
	e.surface.ClearRect(x-clearMargin, y-clearMargin, w+2*clearMargin, h+2*clearMargin)
}

// Bounds returns the normalised box a record was painted in. Circles use
// their radius; every other kind uses its own width and height, even when
// they are zero.
func Bounds(rec Record) (float64, float64, float64, float64) {
	switch rec.Kind {
	case KindCircle:
		return rec.X, rec.Y, 2 * rec.Radius, 2 * rec.Radius
	case KindSquare, KindStar:
		side := math.Min(math.Abs(rec.Width), math.Abs(rec.Height))
		return rec.X, rec.Y, side, side
	}

	x, y, w, h := rec.X, rec.Y, rec.Width, rec.Height
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return x, y, w, h
}

func (r Record) params() Params {
	return Params{
		Kind:      r.Kind,
		X:         r.X,
		Y:         r.Y,
		Width:     r.Width,
		Height:    r.Height,
		Radius:    r.Radius,
		Color:     r.Color,
		LineWidth: r.LineWidth,
	}
}
