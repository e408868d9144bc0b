package chart

import (
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Surface is the drawing target of a Renderer. A surface is owned by exactly
// one renderer; nothing else draws on it between renders.
type Surface interface {
	// Size is the current pixel size the surface should be drawn at.
	Size() (width, height int)
	// Clear starts a new frame of width x height pixels.
	Clear(width, height int)
	Line(x1, y1, x2, y2 float64, s Stroke)
	Rect(x, y, w, h float64, fill drawing.Color)
	Text(body string, x, y float64, f Font)
}

// Stroke styles a line. An empty Dash draws a solid line.
type Stroke struct {
	Color drawing.Color
	Width float64
	Dash  []float64
}

// Font styles a text label.
type Font struct {
	Color drawing.Color
	Size  float64
	Bold  bool
}

// Format is an output encoding of a rendered chart.
type Format string

const (
	FormatPNG  Format = "png"
	FormatSVG  Format = "svg"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPNG, FormatSVG, FormatJSON:
		return f, nil
	case "":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	default:
		return "image/png"
	}
}

// EncodingSurface is a Surface whose last frame can be written out.
type EncodingSurface interface {
	Surface
	// SetSize changes the size reported by Size; the renderer picks it up on Resize.
	SetSize(width, height int)
	Encode(w io.Writer) error
	Format() Format
}

// NewSurface returns an encoding surface for the format.
func NewSurface(format Format, width, height int, theme Theme) (EncodingSurface, error) {
	switch format {
	case FormatPNG:
		return NewCanvas(FormatPNG, width, height, theme.Background), nil
	case FormatSVG:
		return NewCanvas(FormatSVG, width, height, theme.Background), nil
	case FormatJSON:
		return NewRecorder(width, height), nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q", format)
	}
}
