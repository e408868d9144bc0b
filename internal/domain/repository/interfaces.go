package repository

import (
	"context"
	"errors"
	"time"

	"FinChart/internal/domain/models"
)

// ErrNoCandles is returned by a CandleSource that has nothing for a subject.
var ErrNoCandles = errors.New("no candles")

// CandleSource provides read-only access to OHLC candles, oldest first.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// AnalysisSource computes overlays for a series of candles.
type AnalysisSource interface {
	Analyze(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) (*models.Analysis, error)
}

// ImageCache stores encoded charts keyed by request.
type ImageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	// InvalidateSubject drops every cached chart of a symbol and timeframe.
	InvalidateSubject(ctx context.Context, s models.Subject) error
	// Lock guards one render of key; the returned release must be called when ok.
	Lock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// EventPublisher emits chart lifecycle events.
type EventPublisher interface {
	PublishRendered(ctx context.Context, e models.ChartRendered) error
	Close() error
}

type Metrics interface {
	RecordRender(format, result string, d time.Duration, bytes int)
	RecordCache(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetStreamSessions(n int)
	RecordFramePushed()
}
