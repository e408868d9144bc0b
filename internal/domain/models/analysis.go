package models

// BandType marks a price band as bullish or bearish.
type BandType string

const (
	Bullish BandType = "bullish"
	Bearish BandType = "bearish"
)

// PriceLevel is a support or resistance level. Strength is the number of
// touches the analysis service clustered into the level.
type PriceLevel struct {
	Price    *float64 `json:"price,omitempty"`
	Strength *float64 `json:"strength,omitempty"`
	Time     string   `json:"time,omitempty"`
}

// Gap is a fair-value gap between High and Low.
type Gap struct {
	Type  BandType `json:"type"`
	High  *float64 `json:"high,omitempty"`
	Low   *float64 `json:"low,omitempty"`
	Index int      `json:"index,omitempty"`
	Time  string   `json:"time,omitempty"`
}

// OrderBlock is the last opposing candle before an impulsive move.
type OrderBlock struct {
	Type  BandType `json:"type"`
	High  *float64 `json:"high,omitempty"`
	Low   *float64 `json:"low,omitempty"`
	Open  *float64 `json:"open,omitempty"`
	Close *float64 `json:"close,omitempty"`
	Index int      `json:"index,omitempty"`
	Time  string   `json:"time,omitempty"`
}

// Analysis is the pre-computed bundle returned by the analysis service.
// Every collection is optional; nil means the layer is not drawn.
type Analysis struct {
	SupportLevels    []PriceLevel `json:"support_levels,omitempty"`
	ResistanceLevels []PriceLevel `json:"resistance_levels,omitempty"`
	Gaps             []Gap        `json:"fvg_gaps,omitempty"`
	OrderBlocks      []OrderBlock `json:"order_blocks,omitempty"`

	SignalSummary
}

// SignalSummary is the trade summary that accompanies the overlays. The chart
// does not draw it; stream clients display it next to the chart.
type SignalSummary struct {
	Signal          string   `json:"signal,omitempty"`
	Direction       string   `json:"direction,omitempty"`
	Entry           *float64 `json:"entry,omitempty"`
	StopLoss        *float64 `json:"stop_loss,omitempty"`
	TakeProfit      *float64 `json:"take_profit,omitempty"`
	RRRatio         *float64 `json:"rr_ratio,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	AnalysisDetails []string `json:"analysis_details,omitempty"`

	TechnicalIndicators map[string]float64 `json:"technical_indicators,omitempty"`
}

// Level builds a fully populated price level.
func Level(price, strength float64) PriceLevel {
	return PriceLevel{Price: &price, Strength: &strength}
}

// NewGap builds a gap between low and high.
func NewGap(t BandType, high, low float64) Gap {
	return Gap{Type: t, High: &high, Low: &low}
}

// NewOrderBlock builds an order block between low and high.
func NewOrderBlock(t BandType, high, low float64) OrderBlock {
	return OrderBlock{Type: t, High: &high, Low: &low}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
