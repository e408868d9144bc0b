package chart

import (
	"fmt"
	"math"
	"strconv"

	"FinChart/internal/domain/models"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// LevelKind selects the style of a labelled horizontal price line.
type LevelKind int

const (
	Support LevelKind = iota
	Resistance
)

func (k LevelKind) prefix() string {
	if k == Resistance {
		return "R"
	}
	return "S"
}

// BandKind selects the palette of a horizontal price band.
type BandKind int

const (
	GapBand BandKind = iota
	OrderBlockBand
)

func (r *Renderer) levelColor(k LevelKind) drawing.Color {
	if k == Resistance {
		return r.cfg.Theme.Resistance
	}
	return r.cfg.Theme.Support
}

// bandColor keys the color by kind and type; any type other than bullish is drawn as bearish.
func (r *Renderer) bandColor(k BandKind, t models.BandType) drawing.Color {
	th := r.cfg.Theme
	bull := t == models.Bullish
	switch {
	case k == OrderBlockBand && bull:
		return th.OrderBlockBullish
	case k == OrderBlockBand:
		return th.OrderBlockBearish
	case bull:
		return th.GapBullish
	default:
		return th.GapBearish
	}
}

func (r *Renderer) drawLevels(vp Viewport, kind LevelKind, levels []models.PriceLevel) {
	for _, l := range levels {
		if l.Price == nil {
			continue
		}
		label := fmt.Sprintf("%s: %.5f (%s)", kind.prefix(), *l.Price, strengthLabel(l.Strength))
		r.drawPriceLine(vp, *l.Price, r.levelColor(kind), label)
	}
}

func (r *Renderer) drawGaps(vp Viewport, gaps []models.Gap) {
	for _, g := range gaps {
		if g.High == nil || g.Low == nil {
			continue
		}
		r.drawPriceBand(vp, *g.High, *g.Low, r.bandColor(GapBand, g.Type))
	}
}

func (r *Renderer) drawOrderBlocks(vp Viewport, blocks []models.OrderBlock) {
	for _, ob := range blocks {
		if ob.High == nil || ob.Low == nil {
			continue
		}
		r.drawPriceBand(vp, *ob.High, *ob.Low, r.bandColor(OrderBlockBand, ob.Type))
	}
}

// drawPriceLine draws a dashed line across the plot at price with a label above its right end.
func (r *Renderer) drawPriceLine(vp Viewport, price float64, color drawing.Color, label string) {
	y := vp.Y(price)
	r.surface.Line(vp.Left(), y, vp.Right(), y, Stroke{Color: color, Width: 2, Dash: []float64{5, 5}})
	r.surface.Text(label, vp.Right()-100, y-5, Font{Color: color, Size: r.cfg.Theme.LevelFontSize, Bold: true})
}

// drawPriceBand fills the full plot width between two prices.
func (r *Renderer) drawPriceBand(vp Viewport, high, low float64, color drawing.Color) {
	yHigh, yLow := vp.Y(high), vp.Y(low)
	r.surface.Rect(vp.Left(), math.Min(yHigh, yLow), vp.PlotWidth, math.Abs(yLow-yHigh), color)
}

func strengthLabel(s *float64) string {
	if s == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*s, 'f', -1, 64) + "x"
}
