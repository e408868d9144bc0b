package chart

import (
	"bytes"
	"fmt"
	"math"

	"FinChart/internal/domain/models"
)

const gridDivisions = 5

// Option configures a Renderer.
type Option func(*Config)

// Config holds renderer configuration.
type Config struct {
	Padding          float64
	MinRangeFraction float64
	MinRangeAbs      float64
	Theme            Theme
}

// WithPadding sets the blank margin around the plot in pixels.
func WithPadding(px float64) Option {
	return func(c *Config) {
		if px >= 0 {
			c.Padding = px
		}
	}
}

// WithTheme sets the palette.
func WithTheme(t Theme) Option {
	return func(c *Config) {
		c.Theme = t
	}
}

// WithMinRange sets the minimum price range as a fraction of the mid price
// and as an absolute value. The absolute floor must stay positive.
func WithMinRange(fraction, abs float64) Option {
	return func(c *Config) {
		if fraction >= 0 {
			c.MinRangeFraction = fraction
		}
		if abs > 0 {
			c.MinRangeAbs = abs
		}
	}
}

// Renderer draws candles and analysis overlays on a Surface.
// Render is not safe for concurrent use; callers serialize access.
type Renderer struct {
	surface Surface
	cfg     *Config
	width   int
	height  int
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Padding:          50,
		MinRangeFraction: 0.001,
		MinRangeAbs:      1e-8,
		Theme:            DefaultTheme(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NewRenderer creates a renderer that owns s and reads its initial size.
func NewRenderer(s Surface, opts ...Option) *Renderer {
	r := &Renderer{surface: s, cfg: NewConfig(opts...)}
	r.Resize()
	return r
}

// Snapshot renders once onto a new surface of the given format and returns the encoded frame.
func Snapshot(format Format, width, height int, candles []models.Candle, analysis *models.Analysis, opts ...Option) ([]byte, error) {
	s, err := NewSurface(format, width, height, NewConfig(opts...).Theme)
	if err != nil {
		return nil, err
	}
	NewRenderer(s, opts...).Render(candles, analysis)

	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Resize re-reads the surface's pixel size. Call it before Render whenever
// the size may have changed.
func (r *Renderer) Resize() {
	w, h := r.surface.Size()
	r.width, r.height = max(w, 0), max(h, 0)
}

// Size returns the pixel size used by the next Render.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Render clears the surface and draws the chart. With no candles nothing is drawn.
func (r *Renderer) Render(candles []models.Candle, analysis *models.Analysis) {
	r.surface.Clear(r.width, r.height)

	vp, ok := NewViewport(candles, r.width, r.height, r.cfg.Padding, r.cfg.MinRangeFraction, r.cfg.MinRangeAbs)
	if !ok {
		return
	}

	r.drawGrid(vp)
	if analysis != nil {
		r.drawLevels(vp, Support, analysis.SupportLevels)
		r.drawLevels(vp, Resistance, analysis.ResistanceLevels)
		r.drawGaps(vp, analysis.Gaps)
		r.drawOrderBlocks(vp, analysis.OrderBlocks)
	}
	r.drawCandles(vp, candles)
	r.drawCurrentPrice(vp, candles[len(candles)-1])
}

func (r *Renderer) drawGrid(vp Viewport) {
	s := Stroke{Color: r.cfg.Theme.Grid, Width: 1}
	for i := 0; i <= gridDivisions; i++ {
		y := vp.Top() + vp.PlotHeight/gridDivisions*float64(i)
		r.surface.Line(vp.Left(), y, vp.Right(), y, s)
	}
	for i := 0; i <= gridDivisions; i++ {
		x := vp.Left() + vp.PlotWidth/gridDivisions*float64(i)
		r.surface.Line(x, vp.Top(), x, vp.Bottom(), s)
	}
}

func (r *Renderer) drawCandles(vp Viewport, candles []models.Candle) {
	cw := vp.PlotWidth / float64(len(candles))
	// 2px inset per side, shrunk on dense charts so a body keeps at least 1px inside its slot
	inset := math.Min(2, cw/4)
	bodyW := math.Max(cw-2*inset, math.Min(1, cw))

	for i, c := range candles {
		x := vp.Left() + float64(i)*cw
		color := r.cfg.Theme.CandleBearish
		if c.IsBullish() {
			color = r.cfg.Theme.CandleBullish
		}

		cx := x + cw/2
		r.surface.Line(cx, vp.Y(c.High), cx, vp.Y(c.Low), Stroke{Color: color, Width: 1})

		openY, closeY := vp.Y(c.Open), vp.Y(c.Close)
		bodyH := math.Max(math.Abs(closeY-openY), 1)
		r.surface.Rect(x+inset, math.Min(openY, closeY), bodyW, bodyH, color)
	}
}

func (r *Renderer) drawCurrentPrice(vp Viewport, last models.Candle) {
	y := vp.Y(last.Close)
	t := r.cfg.Theme
	r.surface.Line(vp.Left(), y, vp.Right(), y, Stroke{Color: t.Marker, Width: 2, Dash: []float64{10, 5}})
	r.surface.Text(fmt.Sprintf("Current: %.5f", last.Close), vp.Right()-120, y-10,
		Font{Color: t.Marker, Size: t.MarkerFontSize, Bold: true})
}
