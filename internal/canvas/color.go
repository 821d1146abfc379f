package canvas

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

var (
	LightBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	DarkBackground  = color.NRGBA{R: 0x28, G: 0x2c, B: 0x34, A: 0xff}
)

// Background returns the paper color for the given theme.
func Background(dark bool) color.Color {
	if dark {
		return DarkBackground
	}
	return LightBackground
}

// ParseColor accepts SVG color names and #rgb / #rrggbb hex notation.
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}

	if !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("unknown color %q", s)
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	if len(hex) != 6 {
		return nil, fmt.Errorf("unknown color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("unknown color %q: %w", s, err)
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Lookup is ParseColor falling back to black.
func Lookup(s string) color.Color {
	c, err := ParseColor(s)
	if err != nil {
		return color.Black
	}
	return c
}

func withAlpha(c color.Color, alpha float64) color.Color {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(float64(n.A)*alpha + 0.5)
	return n
}
