package chart

import (
	"math"

	"FinChart/internal/domain/models"
)

const headroom = 0.1

// Viewport maps prices to vertical pixels for one render.
type Viewport struct {
	MinPrice   float64
	MaxPrice   float64
	Padding    float64
	PlotWidth  float64
	PlotHeight float64
}

// NewViewport computes the viewport for candles drawn on a width x height surface.
// The price range is floored to max(|mid|*minRangeFraction, minRangeAbs) before the
// 10% headroom is added, so a flat series never divides by zero.
// It reports false when there are no candles.
func NewViewport(candles []models.Candle, width, height int, padding, minRangeFraction, minRangeAbs float64) (Viewport, bool) {
	if len(candles) == 0 {
		return Viewport{}, false
	}

	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}

	floor := math.Max(math.Abs((hi+lo)/2)*minRangeFraction, minRangeAbs)
	if hi-lo < floor {
		mid := (hi + lo) / 2
		lo, hi = mid-floor/2, mid+floor/2
	}
	rng := hi - lo

	return Viewport{
		MinPrice:   lo - rng*headroom,
		MaxPrice:   hi + rng*headroom,
		Padding:    padding,
		PlotWidth:  math.Max(float64(width)-2*padding, 0),
		PlotHeight: math.Max(float64(height)-2*padding, 0),
	}, true
}

func (v Viewport) Top() float64    { return v.Padding }
func (v Viewport) Left() float64   { return v.Padding }
func (v Viewport) Bottom() float64 { return v.Padding + v.PlotHeight }
func (v Viewport) Right() float64  { return v.Padding + v.PlotWidth }

// Y maps a price to a vertical pixel; higher prices map to smaller y.
func (v Viewport) Y(price float64) float64 {
	return v.Top() + v.PlotHeight - ((price-v.MinPrice)/(v.MaxPrice-v.MinPrice))*v.PlotHeight
}
