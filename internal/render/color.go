package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Fallback is used for colors that cannot be parsed.
var Fallback = color.NRGBA{A: 0xff}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa" (the leading # is
// optional). Invalid input returns Fallback and an error.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return Fallback, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Fallback, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// MustColor is ParseColor that falls back silently.
func MustColor(s string) color.NRGBA {
	c, _ := ParseColor(s)
	return c
}
