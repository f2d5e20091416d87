package tracking

import "math/rand/v2"

// DefaultPalette holds ten shades each of green, yellow, blue, violet and orange
var DefaultPalette = []string{
	"#236326", "#29762d", "#2f8934", "#359d3b", "#3bb042", "#44c04b", "#57c75d", "#6ace6f", "#7cd582", "#8fdb94",
	"#615f22", "#747128", "#87842f", "#9b9735", "#aeaa3b", "#c0bb43", "#c7c355", "#ceca68", "#d4d17b", "#dbd88e",
	"#2d737f", "#338592", "#3996a6", "#3fa8b9", "#4fb3c3", "#61bbca", "#74c4d1", "#87ccd8", "#9ad5de", "#addde5",
	"#562397", "#6227ad", "#6d2bc2", "#7a34d2", "#8749d7", "#955ddc", "#a372e1", "#b186e6", "#be9beb", "#ccb0ef",
	"#af5b28", "#c4662c", "#d27238", "#d7814c", "#dc8f60", "#e19e75", "#e6ad8a", "#ebbb9e", "#efcab3", "#f4d9c8",
}

// ColorPicker returns the colour for the next new track
type ColorPicker func() string

// RandomColors draws from palette with a seeded generator. An empty palette uses DefaultPalette.
func RandomColors(seed uint64, palette []string) ColorPicker {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func() string {
		return palette[rng.IntN(len(palette))]
	}
}

// CycleColors hands out palette entries in order, wrapping around
func CycleColors(palette []string) ColorPicker {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	i := 0
	return func() string {
		c := palette[i%len(palette)]
		i++
		return c
	}
}
