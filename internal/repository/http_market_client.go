package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	xhttp "FinChart/pkg/http"
	applogger "FinChart/pkg/logger"
)

// HTTPMarketClient reads candles and analysis from the market backend:
//
//	GET  {base}/api/data/{pair}?timeframe=1h   -> [{time, open, high, low, close, volume}]
//	POST {base}/api/analyze {pair, data}      -> analysis with signal summary
//
// The backend always returns its full window, so limits and ranges are applied here.
type HTTPMarketClient struct {
	base    string
	client  *xhttp.Client
	retries int
	backoff time.Duration
	l       *applogger.Logger
}

// MarketClientOption configures HTTPMarketClient.
type MarketClientOption func(*HTTPMarketClient)

// WithRetries sets how many times a failed call is retried and the first backoff.
func WithRetries(n int, backoff time.Duration) MarketClientOption {
	return func(c *HTTPMarketClient) {
		if n >= 0 {
			c.retries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewHTTPMarketClient(base string, client *xhttp.Client, l *applogger.Logger, opts ...MarketClientOption) *HTTPMarketClient {
	c := &HTTPMarketClient{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		retries: 2,
		backoff: 200 * time.Millisecond,
		l:       l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ domrepo.CandleSource   = (*HTTPMarketClient)(nil)
	_ domrepo.AnalysisSource = (*HTTPMarketClient)(nil)
)

func (c *HTTPMarketClient) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	candles, err := c.fetch(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(candles) > n {
		candles = candles[len(candles)-n:]
	}
	return candles, nil
}

func (c *HTTPMarketClient) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	candles, err := c.fetch(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	out := candles[:0]
	for _, k := range candles {
		if !k.OpenTime.Before(from) && !k.OpenTime.After(to) {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("candles %s@%s in range: %w", symbol, tf, domrepo.ErrNoCandles)
	}
	return out, nil
}

type analyzeRequest struct {
	Pair string          `json:"pair"`
	Data []models.Candle `json:"data"`
}

func (c *HTTPMarketClient) Analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) (*models.Analysis, error) {
	var out models.Analysis
	err := c.do(ctx, "analyze", &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.base + "/api/analyze",
		Body:   analyzeRequest{Pair: symbol, Data: candles},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("analyze %s@%s: %w", symbol, tf, err)
	}
	return &out, nil
}

func (c *HTTPMarketClient) fetch(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	var candles []models.Candle
	err := c.do(ctx, "data", &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.base + "/api/data/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{"timeframe": {string(tf)}},
	}, &candles)
	if err != nil {
		return nil, fmt.Errorf("market data %s@%s: %w", symbol, tf, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("market data %s@%s: %w", symbol, tf, domrepo.ErrNoCandles)
	}
	for i := range candles {
		if candles[i].Symbol == "" {
			candles[i].Symbol = symbol
		}
	}
	return candles, nil
}

// do sends with exponential backoff. Client errors (4xx) are not retried.
func (c *HTTPMarketClient) do(ctx context.Context, op string, opts *xhttp.RequestOptions, dest interface{}) error {
	backoff := c.backoff
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.l.Warn("market backend retry",
				applogger.String("op", op),
				applogger.Int("attempt", attempt),
				applogger.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = c.client.SendAndParse(ctx, opts, dest)
		if err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
