package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
)

type point struct {
	x, y float64
}

type subpath struct {
	points []point
	closed bool
}

// Raster is a Surface backed by an in-memory NRGBA image. Snapshots are PNG
// encoded, which round-trips NRGBA pixels exactly.
type Raster struct {
	img   *image.NRGBA
	paths []subpath
}

func NewRaster(width, height int) *Raster {
	return &Raster{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image exposes the backing pixels. Callers must not modify it.
func (r *Raster) Image() image.Image {
	return r.img
}

func (r *Raster) BeginPath() {
	r.paths = r.paths[:0]
}

func (r *Raster) MoveTo(x, y float64) {
	r.paths = append(r.paths, subpath{points: []point{{x, y}}})
}

func (r *Raster) LineTo(x, y float64) {
	if len(r.paths) == 0 {
		r.MoveTo(x, y)
		return
	}

	last := &r.paths[len(r.paths)-1]
	last.points = append(last.points, point{x, y})
}

func (r *Raster) Arc(cx, cy, radius, start, end float64) {
	sweep := end - start
	steps := int(math.Ceil(math.Abs(sweep) * radius / 2))
	if steps < 16 {
		steps = 16
	} else if steps > 360 {
		steps = 360
	}

	for i := 0; i <= steps; i++ {
		a := start + sweep*float64(i)/float64(steps)
		r.LineTo(cx+radius*math.Cos(a), cy+radius*math.Sin(a))
	}
}

func (r *Raster) Rect(x, y, w, h float64) {
	r.paths = append(r.paths, subpath{
		points: []point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}},
		closed: true,
	})
	r.MoveTo(x, y)
}

func (r *Raster) ClosePath() {
	if len(r.paths) == 0 {
		return
	}

	r.paths[len(r.paths)-1].closed = true
}

func (r *Raster) Stroke(s Style) {
	w, h := r.Size()
	scanner := rasterx.NewScannerGV(w, h, r.img, r.img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	dasher.SetStroke(fixed.Int26_6(s.Width*64), 4<<6, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round, s.Dash, 0)
	dasher.SetColor(withAlpha(s.Color, s.Alpha))

	r.trace(dasher)
	dasher.Draw()
}

func (r *Raster) Fill(s Style) {
	w, h := r.Size()
	scanner := rasterx.NewScannerGV(w, h, r.img, r.img.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(withAlpha(s.Color, s.Alpha))

	for _, p := range r.paths {
		if len(p.points) < 3 {
			continue
		}

		filler.Start(rasterx.ToFixedP(p.points[0].x, p.points[0].y))
		for _, pt := range p.points[1:] {
			filler.Line(rasterx.ToFixedP(pt.x, pt.y))
		}
		filler.Stop(true)
	}

	filler.Draw()
}

func (r *Raster) trace(a rasterx.Adder) {
	for _, p := range r.paths {
		if len(p.points) < 2 {
			continue
		}

		a.Start(rasterx.ToFixedP(p.points[0].x, p.points[0].y))
		for _, pt := range p.points[1:] {
			a.Line(rasterx.ToFixedP(pt.x, pt.y))
		}
		a.Stop(p.closed)
	}
}

func (r *Raster) FillRect(x, y, w, h float64, c color.Color) {
	draw.Draw(r.img, pixelRect(x, y, w, h), image.NewUniform(c), image.Point{}, draw.Over)
}

func (r *Raster) ClearRect(x, y, w, h float64) {
	draw.Draw(r.img, pixelRect(x, y, w, h), image.Transparent, image.Point{}, draw.Src)
}

func (r *Raster) ToImage() ([]byte, error) {
	buf := bytes.Buffer{}
	if err := png.Encode(&buf, r.img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (r *Raster) FromImage(b []byte) error {
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	draw.Draw(r.img, img.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}

// pixelRect covers every pixel touched by the rectangle, normalising negative
// sizes the way canvas does.
func pixelRect(x, y, w, h float64) image.Rectangle {
	if w < 0 {
		x, w = x+w, -w
	}

	if h < 0 {
		y, h = y+h, -h
	}

	return image.Rect(
		int(math.Floor(x)), int(math.Floor(y)),
		int(math.Ceil(x+w)), int(math.Ceil(y+h)),
	)
}
