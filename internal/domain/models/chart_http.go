package models

import "time"

// Requests for chart HTTP endpoints. Defined in domain for reuse by the CLI and stream.
// An empty Timeframe and a zero Limit take the service's configured defaults.

type ChartRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,pair"`
	Timeframe string `query:"timeframe" json:"timeframe" validate:"omitempty,oneof=1m 5m 15m 30m 1h 4h 1d"`
	Width     int    `query:"width" json:"width" default:"1200" validate:"gte=100,lte=4096"`
	Height    int    `query:"height" json:"height" default:"600" validate:"gte=100,lte=4096"`
	Format    string `query:"format" json:"format" default:"png" validate:"oneof=png svg json"`
	Limit     int    `query:"limit" json:"limit" validate:"gte=0"`
	Analysis  string `query:"analysis" json:"analysis" default:"on" validate:"oneof=on off"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
}

// WithAnalysis reports whether overlays were requested.
func (r *ChartRequest) WithAnalysis() bool { return r.Analysis != "off" }

type RenderRequest struct {
	Candles  []Candle  `json:"candles" validate:"max=5000"`
	Analysis *Analysis `json:"analysis"`
	Width    int       `json:"width" default:"1200" validate:"gte=100,lte=4096"`
	Height   int       `json:"height" default:"600" validate:"gte=100,lte=4096"`
	Format   string    `json:"format" default:"png" validate:"oneof=png svg json"`
}

// Pair describes a tradable instrument in the catalogue.
type Pair struct {
	Code   string  `json:"code" yaml:"code"`
	Symbol string  `json:"symbol" yaml:"symbol"`
	Name   string  `json:"name" yaml:"name"`
	Pip    float64 `json:"pip" yaml:"pip"`
}

// ChartImage is an encoded chart ready to be written to a client.
type ChartImage struct {
	Subject     Subject
	Format      string
	ContentType string
	Width       int
	Height      int
	Candles     int
	Data        []byte
	Cached      bool
	RenderedAt  time.Time
}
