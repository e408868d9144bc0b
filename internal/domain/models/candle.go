package models

import (
	"encoding/json"
	"fmt"
	"time"

	xutil "FinChart/pkg/util"
)

// Candle is one OHLCV bar. Slices of candles are ordered by OpenTime ascending.
type Candle struct {
	OpenTime time.Time
	Symbol   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// candleJSON is the wire form used by the market data backend:
// {"time": "2024-01-02 15:00:00", "open": ..., "high": ..., "low": ..., "close": ..., "volume": ...}
type candleJSON struct {
	Time   string  `json:"time,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (c Candle) MarshalJSON() ([]byte, error) {
	out := candleJSON{
		Symbol: c.Symbol,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
	if !c.OpenTime.IsZero() {
		out.Time = c.OpenTime.UTC().Format(xutil.LayoutDateTime)
	}
	return json.Marshal(out)
}

func (c *Candle) UnmarshalJSON(b []byte) error {
	var in candleJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*c = Candle{
		Symbol: in.Symbol,
		Open:   in.Open,
		High:   in.High,
		Low:    in.Low,
		Close:  in.Close,
		Volume: in.Volume,
	}
	if in.Time != "" {
		t, ok := xutil.ParseTime(in.Time)
		if !ok {
			return fmt.Errorf("candle time %q: unsupported format", in.Time)
		}
		c.OpenTime = t
	}
	return nil
}

// Subject identifies a chart by pair and timeframe.
type Subject struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (s Subject) String() string { return s.Symbol + "@" + s.Timeframe }

// IsZero reports whether nothing has been drawn for this subject yet.
func (s Subject) IsZero() bool { return s.Symbol == "" }
