package models

import "time"

// CandlesUpdated is consumed from Kafka when the store has new bars for a subject.
type CandlesUpdated struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	T         int64  `json:"t"` // event time, unix seconds or ms
}

// EventTime normalizes T to a time, accepting seconds or milliseconds.
func (e CandlesUpdated) EventTime() time.Time {
	if e.T > 1e11 {
		return time.UnixMilli(e.T)
	}
	return time.Unix(e.T, 0)
}

// ChartRendered is published after a chart has been rendered and encoded.
type ChartRendered struct {
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Candles    int       `json:"candles"`
	Bytes      int       `json:"bytes"`
	DurationMs int64     `json:"duration_ms"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Stream messages exchanged over the chart WebSocket.

type StreamCommand struct {
	Type      string `json:"type"` // subscribe | resize
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type StreamFrame struct {
	Type      string         `json:"type"` // frame | error
	Symbol    string         `json:"symbol,omitempty"`
	Timeframe string         `json:"timeframe,omitempty"`
	Format    string         `json:"format,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Data      string         `json:"data,omitempty"`
	Signal    *SignalSummary `json:"signal,omitempty"`
	Message   string         `json:"message,omitempty"`
}
