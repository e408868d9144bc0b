package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var errNoFrame = errors.New("chart: nothing rendered")

// Canvas is a Surface backed by a go-chart renderer, encoding to PNG or SVG.
// Each Clear starts a fresh go-chart renderer. Backend errors are kept and
// returned from Encode.
type Canvas struct {
	format     Format
	provider   gochart.RendererProvider
	width      int
	height     int
	background drawing.Color

	r       gochart.Renderer
	hasFont bool
	err     error
}

var _ EncodingSurface = (*Canvas)(nil)

// NewCanvas creates a PNG or SVG canvas. Any other format falls back to PNG.
func NewCanvas(format Format, width, height int, background drawing.Color) *Canvas {
	c := &Canvas{format: FormatPNG, provider: gochart.PNG, width: width, height: height, background: background}
	if format == FormatSVG {
		c.format, c.provider = FormatSVG, gochart.SVG
	}
	return c
}

func (c *Canvas) Size() (int, int) { return c.width, c.height }

func (c *Canvas) SetSize(width, height int) { c.width, c.height = width, height }

func (c *Canvas) Format() Format { return c.format }

func (c *Canvas) Clear(width, height int) {
	c.r, c.err, c.hasFont = nil, nil, false

	r, err := c.provider(max(width, 1), max(height, 1))
	if err != nil {
		c.err = fmt.Errorf("chart: new %s renderer: %w", c.format, err)
		return
	}
	c.r = r

	if font, err := gochart.GetDefaultFont(); err == nil {
		r.SetFont(font)
		c.hasFont = true
	}

	if !c.background.IsZero() {
		c.Rect(0, 0, float64(width), float64(height), c.background)
	}
}

func (c *Canvas) Line(x1, y1, x2, y2 float64, s Stroke) {
	if c.r == nil {
		return
	}
	c.r.ResetStyle()
	c.r.SetStrokeColor(s.Color)
	c.r.SetStrokeWidth(s.Width)
	c.r.SetStrokeDashArray(s.Dash)
	c.r.MoveTo(px(x1), px(y1))
	c.r.LineTo(px(x2), px(y2))
	c.r.Stroke()
}

func (c *Canvas) Rect(x, y, w, h float64, fill drawing.Color) {
	if c.r == nil {
		return
	}
	c.r.ResetStyle()
	c.r.SetFillColor(fill)
	c.r.MoveTo(px(x), px(y))
	c.r.LineTo(px(x+w), px(y))
	c.r.LineTo(px(x+w), px(y+h))
	c.r.LineTo(px(x), px(y+h))
	c.r.Close()
	c.r.Fill()
}

// Text draws a label with the default go-chart font. Bold is not available
// in the embedded font and is ignored.
func (c *Canvas) Text(body string, x, y float64, f Font) {
	if c.r == nil || !c.hasFont {
		return
	}
	c.r.ResetStyle()
	c.r.SetFontColor(f.Color)
	c.r.SetFontSize(f.Size)
	c.r.Text(body, px(x), px(y))
}

// Encode writes the last frame.
func (c *Canvas) Encode(w io.Writer) error {
	if c.err != nil {
		return c.err
	}
	if c.r == nil {
		return errNoFrame
	}
	return c.r.Save(w)
}

func px(v float64) int { return int(math.Round(v)) }
