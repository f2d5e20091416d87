package mapsurface

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// DefaultColor is used for handles created without a color
const DefaultColor = "#3388ff"

// ParseHexColor parses "#rrggbb" or "#rgb"
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ColorOrDefault returns c, or DefaultColor when c is not a valid hex color
func ColorOrDefault(c string) string {
	if _, err := ParseHexColor(c); err != nil {
		return DefaultColor
	}
	return c
}
