package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Shapes lists the shape kinds accepted by "draw <shape>".
var Shapes = []string{"circle", "rectangle", "square", "star", "line", "arrow", "triangle"}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// Parse turns typed or transcribed text into a Command. It never fails: any
// text outside the grammar yields an Error command.
func Parse(text string) Command {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return invalid()
	}

	switch tokens[0] {
	case "draw":
		return parseDraw(tokens)
	case "highlight":
		if len(tokens) < 3 || tokens[1] != "with" {
			return invalid()
		}

		cmd := Highlight{Color: tokens[2], Opacity: math.NaN()}
		if len(tokens) >= 5 && tokens[3] == "opacity" {
			cmd.Opacity = parseFloat(tokens[4])
		}
		return cmd
	case "move":
		if len(tokens) < 4 || tokens[2] != "to" {
			return invalid()
		}

		x, y, ok := coordinates(tokens[3:])
		if !ok {
			return invalid()
		}
		return Move{ShapeID: tokens[1], X: x, Y: y}
	case "delete":
		if len(tokens) < 2 {
			return invalid()
		}
		return Delete{ShapeID: tokens[1]}
	case "erase":
		return Erase{}
	case "clear":
		return Clear{}
	case "undo":
		return Undo{}
	case "redo":
		return Redo{}
	case "download":
		return Download{}
	case "theme":
		if len(tokens) < 2 || (tokens[1] != "light" && tokens[1] != "dark") {
			return invalid()
		}
		return Theme{Mode: tokens[1]}
	default:
		return invalid()
	}
}

func parseDraw(tokens []string) Command {
	if len(tokens) < 2 {
		return invalid()
	}

	if tokens[1] == "with" {
		if len(tokens) < 3 {
			return invalid()
		}

		cmd := Draw{Color: tokens[2], Width: math.NaN()}
		if len(tokens) >= 5 && tokens[3] == "width" {
			cmd.Width = parseInt(tokens[4])
		}
		return cmd
	}

	if !slices.Contains(Shapes, tokens[1]) {
		return invalid()
	}

	x, y, ok := coordinates(tokens[2:])
	if !ok {
		return invalid()
	}

	return DrawShape{
		Shape:  tokens[1],
		X:      x,
		Y:      y,
		Radius: numberAfter(tokens, "radius"),
		Width:  numberAfter(tokens, "width"),
		Height: numberAfter(tokens, "height"),
		Color:  wordAfter(tokens, "color"),
	}
}

// coordinates finds the first token starting with "(" and reads "(x,y)" from
// it. A coordinate split by whitespace, "(1, 2)", is joined back up to ")".
func coordinates(tokens []string) (float64, float64, bool) {
	start := -1
	for i, t := range tokens {
		if strings.HasPrefix(t, "(") {
			start = i
			break
		}
	}

	if start == -1 {
		return 0, 0, false
	}

	raw := tokens[start]
	for i := start + 1; !strings.Contains(raw, ")") && i < len(tokens); i++ {
		raw += tokens[i]
	}

	raw = strings.NewReplacer("(", "", ")", "").Replace(raw)
	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return parseInt(parts[0]), math.NaN(), true
	}

	return parseInt(parts[0]), parseInt(parts[1]), true
}

func numberAfter(tokens []string, keyword string) float64 {
	w := wordAfter(tokens, keyword)
	if w == "" {
		return math.NaN()
	}
	return parseInt(w)
}

func wordAfter(tokens []string, keyword string) string {
	for i, t := range tokens {
		if t == keyword && i+1 < len(tokens) {
			return tokens[i+1]
		}
	}
	return ""
}

// parseInt reads a leading integer the way browsers' parseInt does: "12px"
// is 12, "px" is NaN.
func parseInt(s string) float64 {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseFloat(s string) float64 {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func invalid() Command {
	return Error{Message: InvalidFormat}
}
