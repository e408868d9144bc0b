package chart

import (
	"bytes"
	"encoding/json"
	"testing"

	"FinChart/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestCandles(count int) []models.Candle {
	candles := make([]models.Candle, 0, count)
	price := 1.1000
	for i := 0; i < count; i++ {
		delta := 0.0004
		if i%3 == 0 {
			delta = -0.0003
		}
		open := price
		closeP := price + delta
		candles = append(candles, candle(open, max(open, closeP)+0.0002, min(open, closeP)-0.0002, closeP))
		price = closeP
	}
	return candles
}

func testAnalysis() *models.Analysis {
	return &models.Analysis{
		SupportLevels:    []models.PriceLevel{models.Level(1.1002, 3)},
		ResistanceLevels: []models.PriceLevel{models.Level(1.1030, 2)},
		Gaps:             []models.Gap{models.NewGap(models.Bullish, 1.1015, 1.1010)},
		OrderBlocks:      []models.OrderBlock{models.NewOrderBlock(models.Bearish, 1.1025, 1.1020)},
	}
}

func TestSnapshotFormats(t *testing.T) {
	candles := buildTestCandles(40)

	tests := []struct {
		name   string
		format Format
		check  func(t *testing.T, data []byte)
	}{
		{
			name:   "png",
			format: FormatPNG,
			check: func(t *testing.T, data []byte) {
				assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
			},
		},
		{
			name:   "svg",
			format: FormatSVG,
			check: func(t *testing.T, data []byte) {
				assert.Contains(t, string(data), "<svg")
				assert.Contains(t, string(data), "Current: ")
			},
		},
		{
			name:   "json draw list",
			format: FormatJSON,
			check: func(t *testing.T, data []byte) {
				var out struct {
					Width  int `json:"width"`
					Height int `json:"height"`
					Ops    []struct {
						Kind  string `json:"kind"`
						Color string `json:"color"`
						Text  string `json:"text"`
					} `json:"ops"`
				}
				require.NoError(t, json.Unmarshal(data, &out))
				assert.Equal(t, 640, out.Width)
				assert.Equal(t, 480, out.Height)
				// grid, 2 levels with labels, 2 bands, 40 candles, marker
				assert.Len(t, out.Ops, 12+4+2+80+2)
				assert.Equal(t, "line", out.Ops[0].Kind)
				assert.Equal(t, "S: 1.10020 (3x)", out.Ops[13].Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Snapshot(tt.format, 640, 480, candles, testAnalysis())
			require.NoError(t, err)
			require.NotEmpty(t, data)
			tt.check(t, data)
		})
	}
}

func TestSnapshotEmptyCandlesIsBlankFrame(t *testing.T) {
	data, err := Snapshot(FormatPNG, 200, 100, nil, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	data, err = Snapshot(FormatJSON, 200, 100, nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":200,"height":100,"ops":[]}`, string(data))
}

func TestCanvasEncodeBeforeRender(t *testing.T) {
	c := NewCanvas(FormatSVG, 100, 100, DefaultTheme().Background)
	err := c.Encode(&bytes.Buffer{})
	assert.ErrorIs(t, err, errNoFrame)
}

func TestCanvasReusedAcrossFrames(t *testing.T) {
	c := NewCanvas(FormatSVG, 300, 200, DefaultTheme().Background)
	r := NewRenderer(c)

	r.Render(buildTestCandles(5), nil)
	c.SetSize(500, 300)
	r.Resize()
	r.Render(buildTestCandles(5), nil)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	assert.Contains(t, buf.String(), "Current: ")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("<svg")))
}

func TestNewSurface(t *testing.T) {
	for _, f := range []Format{FormatPNG, FormatSVG, FormatJSON} {
		s, err := NewSurface(f, 10, 10, DefaultTheme())
		require.NoError(t, err)
		assert.Equal(t, f, s.Format())
	}

	_, err := NewSurface("gif", 10, 10, DefaultTheme())
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())

	_, err = ParseFormat("bmp")
	assert.Error(t, err)
}
