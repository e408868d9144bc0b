package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want drawing.Color
	}{
		{"#1e222d", drawing.Color{R: 0x1e, G: 0x22, B: 0x2d, A: 255}},
		{"#FFD700", drawing.Color{R: 255, G: 215, B: 0, A: 255}},
		{"#fff", drawing.Color{R: 255, G: 255, B: 255, A: 255}},
		{"#ff000080", drawing.Color{R: 255, A: 128}},
		{"#ff", drawing.Color{}},
		{"#zzzzzz", drawing.Color{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseColor(tt.in))
		})
	}
}

func TestThemeOverridesApply(t *testing.T) {
	base := DefaultTheme()
	got := ThemeOverrides{Marker: "#ffffff", Background: ""}.Apply(base)

	assert.Equal(t, drawing.ColorWhite, got.Marker)
	assert.Equal(t, base.Background, got.Background)
	assert.Equal(t, base.Support, got.Support)
}
