package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"FinChart/internal/chart"
	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	applogger "FinChart/pkg/logger"
	xutil "FinChart/pkg/util"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownPair  = errors.New("unknown pair")
	ErrInvalidRange = errors.New("invalid time range")
)

// ChartUseCase loads candles and analysis for a pair and renders charts.
type ChartUseCase struct {
	candles  domrepo.CandleSource
	analysis domrepo.AnalysisSource
	cache    domrepo.ImageCache
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger

	pairs    map[string]models.Pair
	order    []string
	renderer []chart.Option
	defLimit int
	maxLimit int
	defTF    domrepo.Timeframe

	group         singleflight.Group
	renderTimeout time.Duration
}

// ChartOption configures ChartUseCase.
type ChartOption func(*ChartUseCase)

// WithAnalysisSource enables overlays. Without it charts have candles only.
func WithAnalysisSource(a domrepo.AnalysisSource) ChartOption {
	return func(uc *ChartUseCase) { uc.analysis = a }
}

// WithImageCache caches encoded charts of GET renders.
func WithImageCache(c domrepo.ImageCache) ChartOption {
	return func(uc *ChartUseCase) { uc.cache = c }
}

func WithEventPublisher(p domrepo.EventPublisher) ChartOption {
	return func(uc *ChartUseCase) { uc.events = p }
}

// WithRenderOptions passes padding, theme and range options to every renderer.
func WithRenderOptions(opts ...chart.Option) ChartOption {
	return func(uc *ChartUseCase) { uc.renderer = append(uc.renderer, opts...) }
}

// WithLimits sets the default and the maximum number of candles per chart.
func WithLimits(def, max int) ChartOption {
	return func(uc *ChartUseCase) {
		if def > 0 {
			uc.defLimit = def
		}
		if max >= uc.defLimit {
			uc.maxLimit = max
		}
	}
}

// WithRenderTimeout bounds a shared render. It runs detached from the
// request that started it, so one caller leaving does not fail the others.
func WithRenderTimeout(d time.Duration) ChartOption {
	return func(uc *ChartUseCase) {
		if d > 0 {
			uc.renderTimeout = d
		}
	}
}

// WithDefaultTimeframe sets the timeframe used when a request names none or an unknown one.
func WithDefaultTimeframe(tf string) ChartOption {
	return func(uc *ChartUseCase) {
		if domrepo.IsValidTimeframe(domrepo.Timeframe(tf)) {
			uc.defTF = domrepo.Timeframe(tf)
		}
	}
}

func NewChartUseCase(candles domrepo.CandleSource, pairs []models.Pair, metrics domrepo.Metrics, l *applogger.Logger, opts ...ChartOption) *ChartUseCase {
	uc := &ChartUseCase{
		candles:  candles,
		metrics:  metrics,
		l:        l,
		pairs:    make(map[string]models.Pair, len(pairs)),
		defLimit: 100,
		maxLimit: 5000,
		defTF:    domrepo.DefaultTimeframe(),

		renderTimeout: 30 * time.Second,
	}
	for _, p := range pairs {
		code := xutil.NormalizeSymbol(p.Code)
		if _, dup := uc.pairs[code]; !dup {
			uc.order = append(uc.order, code)
		}
		uc.pairs[code] = p
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Pairs lists the catalogue in configuration order.
func (uc *ChartUseCase) Pairs() []models.Pair {
	out := make([]models.Pair, 0, len(uc.order))
	for _, code := range uc.order {
		out = append(out, uc.pairs[code])
	}
	return out
}

// Pair resolves a pair code case-insensitively.
func (uc *ChartUseCase) Pair(code string) (models.Pair, error) {
	p, ok := uc.pairs[xutil.NormalizeSymbol(code)]
	if !ok {
		return models.Pair{}, fmt.Errorf("%w: %q", ErrUnknownPair, code)
	}
	return p, nil
}

// Subject resolves the pair and normalizes the timeframe.
func (uc *ChartUseCase) Subject(code, timeframe string) (models.Subject, error) {
	p, err := uc.Pair(code)
	if err != nil {
		return models.Subject{}, err
	}
	tf := domrepo.Timeframe(strings.TrimSpace(timeframe))
	if !domrepo.IsValidTimeframe(tf) {
		tf = uc.defTF
	}
	return models.Subject{Symbol: xutil.NormalizeSymbol(p.Code), Timeframe: string(tf)}, nil
}

// Quote is the latest close of a pair.
type Quote struct {
	Pair      string    `json:"pair"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Price returns the close of the most recent candle of the default timeframe.
func (uc *ChartUseCase) Price(ctx context.Context, code string) (*Quote, error) {
	s, err := uc.Subject(code, "")
	if err != nil {
		return nil, err
	}
	candles, err := uc.candles.GetLatestNCandles(ctx, s.Symbol, 1, domrepo.Timeframe(s.Timeframe))
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", s.Symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("price %s: %w", s.Symbol, domrepo.ErrNoCandles)
	}
	last := candles[len(candles)-1]
	return &Quote{Pair: s.Symbol, Price: last.Close, Timestamp: last.OpenTime}, nil
}

// Series is everything a frame of one subject is drawn from.
type Series struct {
	Subject  models.Subject
	Candles  []models.Candle
	Analysis *models.Analysis
}

// LoadParams selects the candles of a series.
type LoadParams struct {
	Limit    int
	From, To time.Time
	Analysis bool
}

// Load reads candles and, when requested, the analysis of a subject.
// Analysis failures are logged and leave Analysis nil.
func (uc *ChartUseCase) Load(ctx context.Context, s models.Subject, p LoadParams) (*Series, error) {
	tf := domrepo.Timeframe(s.Timeframe)
	start := time.Now()

	var (
		candles []models.Candle
		err     error
	)
	if !p.From.IsZero() || !p.To.IsZero() {
		to := p.To
		if to.IsZero() {
			to = time.Now().UTC()
		}
		if p.From.After(to) {
			return nil, fmt.Errorf("%w: from %s after to %s", ErrInvalidRange, p.From.Format(time.RFC3339), to.Format(time.RFC3339))
		}
		// widen to whole bars so the bar containing from is drawn
		from, to := xutil.AlignFromTo(p.From, to, s.Timeframe)
		candles, err = uc.candles.GetCandles(ctx, s.Symbol, from, to, tf)
		if err == nil && len(candles) > uc.limit(p.Limit) {
			candles = candles[len(candles)-uc.limit(p.Limit):]
		}
	} else {
		candles, err = uc.candles.GetLatestNCandles(ctx, s.Symbol, uc.limit(p.Limit), tf)
	}
	uc.metrics.RecordLatency("load_candles", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("load_candles")
		return nil, fmt.Errorf("load %s: %w", s, err)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })

	series := &Series{Subject: s, Candles: candles}
	if p.Analysis && uc.analysis != nil && len(candles) > 0 {
		start = time.Now()
		a, err := uc.analysis.Analyze(ctx, s.Symbol, tf, candles)
		uc.metrics.RecordLatency("analyze", time.Since(start).Seconds())
		if err != nil {
			uc.metrics.RecordError("analysis")
			uc.l.Warn("analysis unavailable, rendering candles only",
				applogger.String("subject", s.String()),
				applogger.Error(err),
			)
		} else {
			series.Analysis = a
		}
	}
	return series, nil
}

func (uc *ChartUseCase) limit(n int) int {
	if n <= 0 {
		return uc.defLimit
	}
	return min(n, uc.maxLimit)
}

// Render serves a chart of a configured pair, from cache when possible.
// Concurrent identical requests share one render, and across replicas a
// cache lock elects the one that stores the result.
func (uc *ChartUseCase) Render(ctx context.Context, req models.ChartRequest) (*models.ChartImage, error) {
	format, err := chart.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	s, err := uc.Subject(req.Symbol, req.Timeframe)
	if err != nil {
		return nil, err
	}
	p := LoadParams{Limit: uc.limit(req.Limit), Analysis: req.WithAnalysis()}
	if req.From != "" || req.To != "" {
		var ok bool
		if p.From, ok = xutil.ParseTime(req.From); req.From != "" && !ok {
			return nil, fmt.Errorf("%w: bad from %q", ErrInvalidRange, req.From)
		}
		if p.To, ok = xutil.ParseTime(req.To); req.To != "" && !ok {
			return nil, fmt.Errorf("%w: bad to %q", ErrInvalidRange, req.To)
		}
	}

	key := domrepo.ImageKey(s, req.Width, req.Height, format, p.Limit, req.Analysis, req.From, req.To)
	if img := uc.cached(ctx, key); img != nil {
		img.Subject, img.Format, img.ContentType = s, string(format), format.ContentType()
		img.Width, img.Height = req.Width, req.Height
		uc.metrics.RecordRender(string(format), "cached", 0, len(img.Data))
		return img, nil
	}

	ch := uc.group.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.renderTimeout)
		defer cancel()
		return uc.renderAndStore(rctx, key, s, p, format, req.Width, req.Height)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.ChartImage), nil
	}
}

func (uc *ChartUseCase) cached(ctx context.Context, key string) *models.ChartImage {
	if uc.cache == nil {
		return nil
	}
	data, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.metrics.RecordError("cache_get")
		uc.l.Warn("chart cache get", applogger.String("key", key), applogger.Error(err))
		return nil
	}
	if !ok {
		uc.metrics.RecordCache("miss")
		return nil
	}
	uc.metrics.RecordCache("hit")
	return &models.ChartImage{Data: data, Cached: true}
}

func (uc *ChartUseCase) renderAndStore(ctx context.Context, key string, s models.Subject, p LoadParams, format chart.Format, w, h int) (*models.ChartImage, error) {
	store := false
	if uc.cache != nil {
		release, ok, err := uc.cache.Lock(ctx, key)
		switch {
		case err != nil:
			uc.l.Warn("chart cache lock", applogger.String("key", key), applogger.Error(err))
		case !ok:
			uc.metrics.RecordCache("lock_busy")
		default:
			defer release()
			store = true
		}
	}

	series, err := uc.Load(ctx, s, p)
	if err != nil {
		return nil, err
	}
	img, err := uc.draw(ctx, series, format, w, h)
	if err != nil {
		return nil, err
	}

	if store {
		if err := uc.cache.Set(ctx, key, img.Data); err != nil {
			uc.metrics.RecordError("cache_set")
			uc.l.Warn("chart cache set", applogger.String("key", key), applogger.Error(err))
		}
	}
	return img, nil
}

// RenderData draws caller-supplied candles and analysis. Nothing is cached;
// empty candles produce a blank frame.
func (uc *ChartUseCase) RenderData(ctx context.Context, req models.RenderRequest) (*models.ChartImage, error) {
	format, err := chart.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	candles := append([]models.Candle(nil), req.Candles...)
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })

	var s models.Subject
	if len(candles) > 0 {
		s.Symbol = candles[0].Symbol
	}
	return uc.draw(ctx, &Series{Subject: s, Candles: candles, Analysis: req.Analysis}, format, req.Width, req.Height)
}

func (uc *ChartUseCase) draw(ctx context.Context, series *Series, format chart.Format, w, h int) (*models.ChartImage, error) {
	start := time.Now()
	data, err := chart.Snapshot(format, w, h, series.Candles, series.Analysis, uc.renderer...)
	elapsed := time.Since(start)
	if err != nil {
		uc.metrics.RecordRender(string(format), "error", elapsed, 0)
		return nil, fmt.Errorf("render %s: %w", series.Subject, err)
	}
	uc.metrics.RecordRender(string(format), "ok", elapsed, len(data))

	img := &models.ChartImage{
		Subject:     series.Subject,
		Format:      string(format),
		ContentType: format.ContentType(),
		Width:       w,
		Height:      h,
		Candles:     len(series.Candles),
		Data:        data,
		RenderedAt:  time.Now().UTC(),
	}
	uc.publish(ctx, img, elapsed)
	return img, nil
}

func (uc *ChartUseCase) publish(ctx context.Context, img *models.ChartImage, elapsed time.Duration) {
	if uc.events == nil || img.Subject.IsZero() {
		return
	}
	err := uc.events.PublishRendered(ctx, models.ChartRendered{
		Symbol:     img.Subject.Symbol,
		Timeframe:  img.Subject.Timeframe,
		Format:     img.Format,
		Width:      img.Width,
		Height:     img.Height,
		Candles:    img.Candles,
		Bytes:      len(img.Data),
		DurationMs: elapsed.Milliseconds(),
		RenderedAt: img.RenderedAt,
	})
	if err != nil {
		uc.metrics.RecordError("publish_rendered")
		uc.l.Warn("publish chart.rendered", applogger.String("subject", img.Subject.String()), applogger.Error(err))
	}
}

// Invalidate drops cached charts of a subject after its candles changed.
func (uc *ChartUseCase) Invalidate(ctx context.Context, s models.Subject) error {
	if uc.cache == nil {
		return nil
	}
	if err := uc.cache.InvalidateSubject(ctx, s); err != nil {
		uc.metrics.RecordError("cache_invalidate")
		return fmt.Errorf("invalidate %s: %w", s, err)
	}
	return nil
}
