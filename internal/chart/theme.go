package chart

import (
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Theme is the palette and typography of a chart.
type Theme struct {
	Background drawing.Color
	Grid       drawing.Color

	Support    drawing.Color
	Resistance drawing.Color

	GapBullish        drawing.Color
	GapBearish        drawing.Color
	OrderBlockBullish drawing.Color
	OrderBlockBearish drawing.Color

	CandleBullish drawing.Color
	CandleBearish drawing.Color

	Marker drawing.Color

	LevelFontSize  float64
	MarkerFontSize float64
}

// DefaultTheme is the dark palette of the trading dashboard.
func DefaultTheme() Theme {
	return Theme{
		Background: drawing.ColorFromHex("1e222d"),
		Grid:       drawing.Color{R: 255, G: 255, B: 255, A: 25},

		Support:    drawing.ColorFromHex("4CAF50"),
		Resistance: drawing.ColorFromHex("f44336"),

		GapBullish:        drawing.Color{R: 76, G: 175, B: 80, A: 51},
		GapBearish:        drawing.Color{R: 244, G: 67, B: 54, A: 51},
		OrderBlockBullish: drawing.Color{R: 33, G: 150, B: 243, A: 51},
		OrderBlockBearish: drawing.Color{R: 255, G: 152, B: 0, A: 51},

		CandleBullish: drawing.ColorFromHex("4CAF50"),
		CandleBearish: drawing.ColorFromHex("f44336"),

		Marker: drawing.ColorFromHex("FFD700"),

		LevelFontSize:  10,
		MarkerFontSize: 12,
	}
}

// ThemeOverrides holds CSS color strings ("#rrggbb", "rgb()", "rgba()") keyed by theme slot.
// Empty values keep the default.
type ThemeOverrides struct {
	Background        string
	Grid              string
	Support           string
	Resistance        string
	GapBullish        string
	GapBearish        string
	OrderBlockBullish string
	OrderBlockBearish string
	CandleBullish     string
	CandleBearish     string
	Marker            string
}

// Apply returns t with every non-empty override parsed in.
func (o ThemeOverrides) Apply(t Theme) Theme {
	set := func(dst *drawing.Color, css string) {
		if css != "" {
			*dst = ParseColor(css)
		}
	}
	set(&t.Background, o.Background)
	set(&t.Grid, o.Grid)
	set(&t.Support, o.Support)
	set(&t.Resistance, o.Resistance)
	set(&t.GapBullish, o.GapBullish)
	set(&t.GapBearish, o.GapBearish)
	set(&t.OrderBlockBullish, o.OrderBlockBullish)
	set(&t.OrderBlockBearish, o.OrderBlockBearish)
	set(&t.CandleBullish, o.CandleBullish)
	set(&t.CandleBearish, o.CandleBearish)
	set(&t.Marker, o.Marker)
	return t
}

// ParseColor parses "#rgb", "#rgba", "#rrggbb", "#rrggbbaa", "rgb()", "rgba()" and
// named colors. Unparseable input yields the zero (transparent) color.
func ParseColor(css string) drawing.Color {
	css = strings.TrimSpace(css)
	if !strings.HasPrefix(css, "#") {
		return drawing.ParseColor(css)
	}

	hex := css[1:]
	if len(hex) == 3 || len(hex) == 4 {
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return drawing.Color{}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.Color{}
	}
	return drawing.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}
