package chart

import (
	"math"
	"testing"

	"FinChart/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testW = 800
	testH = 600
)

func candle(o, h, l, c float64) models.Candle {
	return models.Candle{Open: o, High: h, Low: l, Close: c}
}

func render(t *testing.T, candles []models.Candle, a *models.Analysis) *Recorder {
	t.Helper()
	rec := NewRecorder(testW, testH)
	NewRenderer(rec).Render(candles, a)
	return rec
}

func TestRenderEmptyCandlesDrawsNothing(t *testing.T) {
	rec := render(t, nil, &models.Analysis{SupportLevels: []models.PriceLevel{models.Level(1.1, 2)}})

	assert.Equal(t, 1, rec.Clears())
	assert.Empty(t, rec.Ops())
}

func TestRenderSingleBullishCandle(t *testing.T) {
	rec := render(t, []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, nil)
	theme := DefaultTheme()

	ops := rec.Ops()
	require.Len(t, ops, 16)
	assert.Len(t, rec.OfKind(OpLine), 14) // 12 grid + wick + marker
	assert.Len(t, rec.OfKind(OpText), 1)

	rects := rec.OfKind(OpRect)
	require.Len(t, rects, 1)
	assert.Equal(t, theme.CandleBullish, rects[0].Color)

	for _, op := range ops[:12] {
		assert.Equal(t, theme.Grid, op.Color)
	}

	wick := ops[12]
	assert.Equal(t, OpLine, wick.Kind)
	assert.Equal(t, 1.0, wick.Width)
	assert.Equal(t, wick.X, wick.X2)

	vp, ok := NewViewport([]models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, testW, testH, 50, 0.001, 1e-8)
	require.True(t, ok)

	marker := ops[14]
	assert.Equal(t, theme.Marker, marker.Color)
	assert.Equal(t, []float64{10, 5}, marker.Dash)
	assert.InDelta(t, vp.Y(1.1005), marker.Y, 1e-9)
	assert.InDelta(t, marker.Y, marker.Y2, 1e-9)

	label := ops[15]
	assert.Equal(t, "Current: 1.10050", label.Text)
	assert.InDelta(t, marker.Y-10, label.Y, 1e-9)
}

func TestRenderBearishAndDojiBodies(t *testing.T) {
	rec := render(t, []models.Candle{
		candle(1.2, 1.25, 1.1, 1.15),
		candle(1.15, 1.2, 1.1, 1.15),
	}, nil)
	theme := DefaultTheme()

	rects := rec.OfKind(OpRect)
	require.Len(t, rects, 2)
	assert.Equal(t, theme.CandleBearish, rects[0].Color)
	// open == close is not bullish
	assert.Equal(t, theme.CandleBearish, rects[1].Color)
	assert.GreaterOrEqual(t, rects[1].H, 1.0)
}

func TestRenderCandleSpacing(t *testing.T) {
	candles := []models.Candle{
		candle(1, 2, 0.5, 1.5),
		candle(1.5, 2, 1, 1.2),
		candle(1.2, 1.8, 1, 1.7),
		candle(1.7, 2.2, 1.6, 2.1),
	}
	rec := render(t, candles, nil)

	// plot width 700 / 4 candles
	var wicks []Op
	for _, op := range rec.OfKind(OpLine)[12:] {
		if op.Dash == nil {
			wicks = append(wicks, op)
		}
	}
	require.Len(t, wicks, 4)
	for i, w := range wicks {
		assert.InDelta(t, 50+175*float64(i)+87.5, w.X, 1e-9)
	}
	for _, r := range rec.OfKind(OpRect) {
		assert.InDelta(t, 171, r.W, 1e-9)
	}
}

func TestRenderOverlayOrder(t *testing.T) {
	a := &models.Analysis{
		SupportLevels:    []models.PriceLevel{models.Level(1.1000, 3)},
		ResistanceLevels: []models.PriceLevel{models.Level(1.1000, 2)},
		Gaps:             []models.Gap{models.NewGap(models.Bullish, 1.1008, 1.1002)},
		OrderBlocks:      []models.OrderBlock{models.NewOrderBlock(models.Bearish, 1.0998, 1.0994)},
	}
	rec := render(t, []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, a)
	theme := DefaultTheme()

	ops := rec.Ops()[12:]
	require.Len(t, ops, 10)

	assert.Equal(t, OpLine, ops[0].Kind)
	assert.Equal(t, theme.Support, ops[0].Color)
	assert.Equal(t, []float64{5, 5}, ops[0].Dash)
	assert.Equal(t, "S: 1.10000 (3x)", ops[1].Text)

	assert.Equal(t, theme.Resistance, ops[2].Color)
	assert.Equal(t, "R: 1.10000 (2x)", ops[3].Text)
	// same price, same row: resistance is drawn later and ends up on top
	assert.Equal(t, ops[0].Y, ops[2].Y)

	assert.Equal(t, OpRect, ops[4].Kind)
	assert.Equal(t, theme.GapBullish, ops[4].Color)
	assert.Equal(t, OpRect, ops[5].Kind)
	assert.Equal(t, theme.OrderBlockBearish, ops[5].Color)

	// candle wick and body, then the marker on top
	assert.Equal(t, theme.CandleBullish, ops[6].Color)
	assert.Equal(t, theme.CandleBullish, ops[7].Color)
	assert.Equal(t, theme.Marker, ops[8].Color)
	assert.Equal(t, theme.Marker, ops[9].Color)
}

func TestRenderBandGeometry(t *testing.T) {
	candles := []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}
	a := &models.Analysis{Gaps: []models.Gap{models.NewGap(models.Bearish, 1.1008, 1.1002)}}
	rec := render(t, candles, a)
	vp, _ := NewViewport(candles, testW, testH, 50, 0.001, 1e-8)

	band := rec.OfKind(OpRect)[0]
	assert.Equal(t, DefaultTheme().GapBearish, band.Color)
	assert.Equal(t, vp.Left(), band.X)
	assert.Equal(t, vp.PlotWidth, band.W)
	assert.InDelta(t, vp.Y(1.1008), band.Y, 1e-9)
	assert.InDelta(t, vp.Y(1.1002)-vp.Y(1.1008), band.H, 1e-9)
}

func TestRenderUnknownBandTypeUsesBearish(t *testing.T) {
	theme := DefaultTheme()
	a := &models.Analysis{
		Gaps:        []models.Gap{models.NewGap("sideways", 1.1008, 1.1002)},
		OrderBlocks: []models.OrderBlock{models.NewOrderBlock("", 1.0998, 1.0994)},
	}
	rects := render(t, []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, a).OfKind(OpRect)

	require.Len(t, rects, 3)
	assert.Equal(t, theme.GapBearish, rects[0].Color)
	assert.Equal(t, theme.OrderBlockBearish, rects[1].Color)
}

func TestRenderMissingOverlayFields(t *testing.T) {
	a := &models.Analysis{
		SupportLevels:    []models.PriceLevel{{Price: models.Float(1.1)}, {Strength: models.Float(4)}},
		ResistanceLevels: []models.PriceLevel{{}},
		Gaps:             []models.Gap{{Type: models.Bullish, High: models.Float(1.1)}},
		OrderBlocks:      []models.OrderBlock{{Type: models.Bearish, Low: models.Float(1.1)}},
	}
	rec := render(t, []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, a)

	texts := rec.OfKind(OpText)
	require.Len(t, texts, 2)
	assert.Equal(t, "S: 1.10000 (N/A)", texts[0].Text)
	assert.Len(t, rec.OfKind(OpRect), 1)
}

func TestRenderAnyAnalysisCombination(t *testing.T) {
	candles := []models.Candle{
		candle(1.1000, 1.1010, 1.0990, 1.1005),
		candle(1.1005, 1.1020, 1.1000, 1.1001),
	}
	support := []models.PriceLevel{models.Level(1.0995, 2)}
	resistance := []models.PriceLevel{models.Level(1.1015, 1.5)}
	gaps := []models.Gap{models.NewGap(models.Bullish, 1.1004, 1.1002)}
	blocks := []models.OrderBlock{models.NewOrderBlock(models.Bullish, 1.0999, 1.0992)}

	for mask := 0; mask < 16; mask++ {
		a := &models.Analysis{}
		if mask&1 != 0 {
			a.SupportLevels = support
		}
		if mask&2 != 0 {
			a.ResistanceLevels = resistance
		}
		if mask&4 != 0 {
			a.Gaps = gaps
		}
		if mask&8 != 0 {
			a.OrderBlocks = blocks
		}
		assert.NotPanics(t, func() { render(t, candles, a) })
	}
	assert.NotPanics(t, func() { render(t, candles, nil) })
}

func TestRenderFlatSeriesStaysInsidePlot(t *testing.T) {
	candles := []models.Candle{
		candle(1.2, 1.2, 1.2, 1.2),
		candle(1.2, 1.2, 1.2, 1.2),
		candle(1.2, 1.2, 1.2, 1.2),
	}
	a := &models.Analysis{SupportLevels: []models.PriceLevel{models.Level(1.2, 1)}}
	rec := render(t, candles, a)
	require.NotEmpty(t, rec.Ops())

	for _, op := range rec.Ops() {
		for _, v := range []float64{op.X, op.Y, op.X2, op.Y2, op.W, op.H} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite coordinate in %+v", op)
		}
		assert.GreaterOrEqual(t, op.X, 50.0)
		assert.LessOrEqual(t, op.X+op.W, 750.0)
		assert.GreaterOrEqual(t, op.Y, 50.0)
		assert.LessOrEqual(t, op.Y+op.H, 550.0)
		if op.Kind == OpLine {
			assert.LessOrEqual(t, op.X2, 750.0)
			assert.LessOrEqual(t, op.Y2, 550.0)
		}
	}

	bodies := rec.OfKind(OpRect)
	require.Len(t, bodies, 3)
	for _, b := range bodies {
		assert.InDelta(t, 300, b.Y, 1e-6)
		assert.Equal(t, 1.0, b.H)
	}
}

func TestRenderZeroPriceFlatSeries(t *testing.T) {
	rec := render(t, []models.Candle{candle(0, 0, 0, 0)}, nil)
	for _, op := range rec.Ops() {
		assert.False(t, math.IsNaN(op.Y) || math.IsInf(op.Y, 0))
	}
}

func TestResizePicksUpNewSurfaceSize(t *testing.T) {
	rec := NewRecorder(testW, testH)
	r := NewRenderer(rec)
	candles := []models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}

	rec.SetSize(400, 300)
	r.Render(candles, nil)
	// size is only re-read on Resize
	assert.Equal(t, 750.0, rec.Ops()[0].X2)

	r.Resize()
	r.Render(candles, nil)
	w, h := r.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)
	assert.Equal(t, 350.0, rec.Ops()[0].X2)
	assert.Equal(t, 250.0, rec.Ops()[5].Y)
}

func TestRenderOnTinySurface(t *testing.T) {
	rec := NewRecorder(20, 20)
	assert.NotPanics(t, func() {
		NewRenderer(rec).Render([]models.Candle{candle(1, 2, 0.5, 1.5)}, nil)
	})
	for _, op := range rec.Ops() {
		assert.False(t, math.IsNaN(op.Y))
	}
}

func TestRendererOptions(t *testing.T) {
	theme := DefaultTheme()
	theme.Marker = theme.Support
	rec := NewRecorder(testW, testH)
	NewRenderer(rec, WithPadding(10), WithTheme(theme), WithMinRange(-1, 0)).
		Render([]models.Candle{candle(1.1000, 1.1010, 1.0990, 1.1005)}, nil)

	ops := rec.Ops()
	assert.Equal(t, 10.0, ops[0].X)
	assert.Equal(t, 790.0, ops[0].X2)
	assert.Equal(t, theme.Support, ops[14].Color)
}
