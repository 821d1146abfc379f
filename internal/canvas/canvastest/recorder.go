// Package canvastest provides a Surface that records calls instead of drawing.
package canvastest

import (
	"encoding/json"
	"image/color"

	"manualpilot/canvas/internal/canvas"
)

type Op struct {
	Name  string        `json:"name"`
	Args  []float64     `json:"args,omitempty"`
	Style *canvas.Style `json:"-"`
	Color color.Color   `json:"-"`
	Dash  bool          `json:"dash,omitempty"`
}

// Recorder implements canvas.Surface. Its snapshot is the JSON encoded list
// of recorded operations, so restoring a snapshot rewinds the recording.
type Recorder struct {
	Width, Height int
	Ops           []Op
	Restores      int
}

var _ canvas.Surface = (*Recorder)(nil)

func New(width, height int) *Recorder {
	return &Recorder{Width: width, Height: height}
}

func (r *Recorder) Size() (int, int) { return r.Width, r.Height }

func (r *Recorder) BeginPath() { r.add("beginPath") }
func (r *Recorder) MoveTo(x, y float64) { r.add("moveTo", x, y) }
func (r *Recorder) LineTo(x, y float64) { r.add("lineTo", x, y) }
func (r *Recorder) ClosePath() { r.add("closePath") }

func (r *Recorder) Arc(cx, cy, radius, start, end float64) {
	r.add("arc", cx, cy, radius, start, end)
}

func (r *Recorder) Rect(x, y, w, h float64) {
	r.add("rect", x, y, w, h)
}

func (r *Recorder) Stroke(s canvas.Style) {
	r.Ops = append(r.Ops, Op{Name: "stroke", Args: []float64{s.Width, s.Alpha}, Style: &s, Color: s.Color, Dash: len(s.Dash) > 0})
}

func (r *Recorder) Fill(s canvas.Style) {
	r.Ops = append(r.Ops, Op{Name: "fill", Args: []float64{s.Alpha}, Style: &s, Color: s.Color})
}

func (r *Recorder) FillRect(x, y, w, h float64, c color.Color) {
	r.Ops = append(r.Ops, Op{Name: "fillRect", Args: []float64{x, y, w, h}, Color: c})
}

func (r *Recorder) ClearRect(x, y, w, h float64) {
	r.add("clearRect", x, y, w, h)
}

func (r *Recorder) ToImage() ([]byte, error) {
	return json.Marshal(r.Ops)
}

func (r *Recorder) FromImage(b []byte) error {
	ops := []Op{}
	if err := json.Unmarshal(b, &ops); err != nil {
		return err
	}

	r.Ops = ops
	r.Restores++
	return nil
}

// Find returns the recorded operations with the given name, in order.
func (r *Recorder) Find(name string) []Op {
	found := []Op{}
	for _, op := range r.Ops {
		if op.Name == name {
			found = append(found, op)
		}
	}
	return found
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.Ops = nil
}

func (r *Recorder) add(name string, args ...float64) {
	r.Ops = append(r.Ops, Op{Name: name, Args: args})
}
