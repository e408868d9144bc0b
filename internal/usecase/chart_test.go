package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"FinChart/internal/chart"
	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	"FinChart/internal/repository"
	"FinChart/pkg/cache"
	applogger "FinChart/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandles struct {
	mu      sync.Mutex
	candles map[string][]models.Candle
	err     error
	latest  int
	ranged  int
}

func (f *fakeCandles) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.candles[symbol]
	if !ok {
		return nil, domrepo.ErrNoCandles
	}
	if len(c) > n {
		c = c[len(c)-n:]
	}
	return c, nil
}

func (f *fakeCandles) GetCandles(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranged++
	var out []models.Candle
	for _, k := range f.candles[symbol] {
		if !k.OpenTime.Before(from) && !k.OpenTime.After(to) {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNoCandles
	}
	return out, nil
}

func (f *fakeCandles) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest + f.ranged
}

type fakeAnalysis struct {
	a   *models.Analysis
	err error
}

func (f *fakeAnalysis) Analyze(context.Context, string, domrepo.Timeframe, []models.Candle) (*models.Analysis, error) {
	return f.a, f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.ChartRendered
	err    error
}

func (f *fakeEvents) PublishRendered(_ context.Context, e models.ChartRendered) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeEvents) Close() error { return nil }

type fakeMetrics struct {
	mu      sync.Mutex
	renders map[string]int
	cache   map[string]int
	errors  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{renders: map[string]int{}, cache: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordRender(format, result string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders[format+":"+result]++
}

func (m *fakeMetrics) RecordCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[result]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) SetStreamSessions(int)         {}
func (m *fakeMetrics) RecordFramePushed()            {}

var testPairs = []models.Pair{
	{Code: "EURUSD", Symbol: "EURUSD=X", Name: "Euro / US Dollar", Pip: 0.0001},
	{Code: "XAUUSD", Symbol: "GC=F", Name: "Gold / US Dollar", Pip: 0.01},
}

func series(n int, start time.Time) []models.Candle {
	out := make([]models.Candle, n)
	price := 1.1
	for i := range out {
		out[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Symbol:   "EURUSD",
			Open:     price,
			High:     price + 0.002,
			Low:      price - 0.001,
			Close:    price + 0.001,
		}
		price += 0.0005
	}
	return out
}

var t0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

type fixture struct {
	uc       *ChartUseCase
	candles  *fakeCandles
	events   *fakeEvents
	metrics  *fakeMetrics
	analysis *fakeAnalysis
	cache    *cache.MemoryCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		candles: &fakeCandles{candles: map[string][]models.Candle{"EURUSD": series(150, t0)}},
		events:  &fakeEvents{},
		metrics: newFakeMetrics(),
		analysis: &fakeAnalysis{a: &models.Analysis{
			SupportLevels: []models.PriceLevel{models.Level(1.1, 3)},
			SignalSummary: models.SignalSummary{Signal: "BUY", Confidence: models.Float(70)},
		}},
		cache: cache.NewMemoryCache(),
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	f.uc = NewChartUseCase(f.candles, testPairs, f.metrics, applogger.Nop(),
		WithAnalysisSource(f.analysis),
		WithImageCache(repository.NewImageCache(f.cache, time.Minute, time.Second, applogger.Nop())),
		WithEventPublisher(f.events),
		WithLimits(100, 500),
		WithRenderOptions(chart.WithPadding(40)),
	)
	return f
}

func chartReq(format string) models.ChartRequest {
	return models.ChartRequest{Symbol: "eurusd", Timeframe: "1h", Width: 400, Height: 300, Format: format, Limit: 100, Analysis: "on"}
}

func TestPairs(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, testPairs, f.uc.Pairs())

	p, err := f.uc.Pair(" xauusd ")
	require.NoError(t, err)
	assert.Equal(t, "GC=F", p.Symbol)

	_, err = f.uc.Pair("DOGEUSD")
	assert.ErrorIs(t, err, ErrUnknownPair)

	s, err := f.uc.Subject("eurusd", "")
	require.NoError(t, err)
	assert.Equal(t, models.Subject{Symbol: "EURUSD", Timeframe: "1h"}, s)
	s, err = f.uc.Subject("eur/usd", "1h")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", s.Symbol)

	uc := NewChartUseCase(f.candles, testPairs, f.metrics, applogger.Nop(), WithDefaultTimeframe("4h"))
	s, err = uc.Subject("eurusd", "2h")
	require.NoError(t, err)
	assert.Equal(t, "4h", s.Timeframe)
	s, err = uc.Subject("eurusd", "15m")
	require.NoError(t, err)
	assert.Equal(t, "15m", s.Timeframe)
}

func TestPrice(t *testing.T) {
	f := newFixture(t)
	q, err := f.uc.Price(context.Background(), "EURUSD")
	require.NoError(t, err)

	last := f.candles.candles["EURUSD"][149]
	assert.Equal(t, "EURUSD", q.Pair)
	assert.Equal(t, last.Close, q.Price)
	assert.Equal(t, last.OpenTime, q.Timestamp)

	_, err = f.uc.Price(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, domrepo.ErrNoCandles)
}

func TestRenderJSONUsesLimitAndAnalysis(t *testing.T) {
	f := newFixture(t)
	img, err := f.uc.Render(context.Background(), chartReq("json"))
	require.NoError(t, err)

	assert.False(t, img.Cached)
	assert.Equal(t, "application/json", img.ContentType)
	assert.Equal(t, 100, img.Candles)
	assert.Equal(t, models.Subject{Symbol: "EURUSD", Timeframe: "1h"}, img.Subject)

	var frame struct {
		Width int `json:"width"`
		Ops   []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"ops"`
	}
	require.NoError(t, json.Unmarshal(img.Data, &frame))
	assert.Equal(t, 400, frame.Width)
	// 12 grid lines, then the support line and its label
	require.Greater(t, len(frame.Ops), 14)
	assert.Equal(t, "S: 1.10000 (3x)", frame.Ops[13].Text)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "EURUSD", f.events.events[0].Symbol)
	assert.Equal(t, len(img.Data), f.events.events[0].Bytes)
	assert.Equal(t, 1, f.metrics.renders["json:ok"])
}

func TestRenderServesFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.Render(ctx, chartReq("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(first.Data), "\x89PNG"))

	second, err := f.uc.Render(ctx, chartReq("png"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, "image/png", second.ContentType)

	assert.Equal(t, 1, f.candles.Calls())
	assert.Equal(t, 1, f.metrics.cache["hit"])
	assert.Equal(t, 1, f.metrics.cache["miss"])
	assert.Equal(t, 1, f.metrics.renders["png:cached"])

	// other sizes are cached separately
	req := chartReq("png")
	req.Width = 500
	_, err = f.uc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, f.candles.Calls())
}

func TestInvalidateDropsCachedCharts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Render(ctx, chartReq("svg"))
	require.NoError(t, err)
	require.NoError(t, f.uc.Invalidate(ctx, models.Subject{Symbol: "EURUSD", Timeframe: "1h"}))

	img, err := f.uc.Render(ctx, chartReq("svg"))
	require.NoError(t, err)
	assert.False(t, img.Cached)
	assert.Equal(t, 2, f.candles.Calls())
}

func TestRenderLockBusyRendersWithoutStoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := chartReq("json")
	key := domrepo.ImageKey(models.Subject{Symbol: "EURUSD", Timeframe: "1h"}, req.Width, req.Height, chart.FormatJSON, req.Limit, req.Analysis, "", "")

	ok, err := f.cache.TryLock(ctx, "lock:"+key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.uc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.cache["lock_busy"])

	img, err := f.uc.Render(ctx, req)
	require.NoError(t, err)
	assert.False(t, img.Cached)
}

func TestRenderAnalysisFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.analysis.err = errors.New("analysis backend down")
	f.analysis.a = nil

	img, err := f.uc.Render(context.Background(), chartReq("json"))
	require.NoError(t, err)
	assert.NotContains(t, string(img.Data), "S: ")
	assert.Equal(t, 1, f.metrics.errors["analysis"])
}

func TestRenderAnalysisOff(t *testing.T) {
	f := newFixture(t)
	req := chartReq("json")
	req.Analysis = "off"

	img, err := f.uc.Render(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, string(img.Data), "S: 1.10000")
}

func TestRenderRange(t *testing.T) {
	f := newFixture(t)
	req := chartReq("json")
	req.From = "2026-01-05 10:00:00"
	req.To = "2026-01-05 19:00:00"

	img, err := f.uc.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Candles)
	assert.Equal(t, 1, f.candles.ranged)

	req.From, req.To = "2026-01-06", "2026-01-05"
	_, err = f.uc.Render(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRange)

	req.From = "yesterday"
	_, err = f.uc.Render(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRenderErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := chartReq("png")
	req.Symbol = "DOGEUSD"
	_, err := f.uc.Render(ctx, req)
	assert.ErrorIs(t, err, ErrUnknownPair)

	req = chartReq("png")
	req.Symbol = "XAUUSD"
	_, err = f.uc.Render(ctx, req)
	assert.ErrorIs(t, err, domrepo.ErrNoCandles)

	_, err = f.uc.Render(ctx, chartReq("gif"))
	assert.Error(t, err)
}

func TestRenderData(t *testing.T) {
	f := newFixture(t)
	candles := series(5, t0)
	// out of order input is sorted by time
	candles[0], candles[4] = candles[4], candles[0]

	img, err := f.uc.RenderData(context.Background(), models.RenderRequest{
		Candles: candles, Width: 300, Height: 200, Format: "json",
		Analysis: &models.Analysis{ResistanceLevels: []models.PriceLevel{models.Level(1.105, 2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, img.Candles)
	assert.Contains(t, string(img.Data), "R: 1.10500 (2x)")
	assert.Contains(t, string(img.Data), "Current: 1.10300")
	assert.Equal(t, t0.Add(4*time.Hour), candles[0].OpenTime, "input slice is not reordered")

	empty, err := f.uc.RenderData(context.Background(), models.RenderRequest{Width: 300, Height: 200, Format: "json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":300,"height":200,"ops":[]}`, string(empty.Data))
	// a blank frame has no subject and publishes nothing
	assert.Len(t, f.events.events, 1)
}

func TestSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.uc.NewSession(chart.FormatSVG, 600, 300)
	require.NoError(t, err)

	frame, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = s.Subscribe(ctx, "eurusd", "1h")
	require.NoError(t, err)
	assert.Equal(t, "frame", frame.Type)
	assert.Equal(t, "EURUSD", frame.Symbol)
	assert.Equal(t, 600, frame.Width)
	assert.Contains(t, frame.Data, "<svg")
	require.NotNil(t, frame.Signal)
	assert.Equal(t, "BUY", frame.Signal.Signal)

	frame, err = s.Resize(ctx, 800, 400)
	require.NoError(t, err)
	assert.Equal(t, 800, frame.Width)
	assert.Equal(t, 400, frame.Height)

	_, err = s.Resize(ctx, 0, 400)
	assert.Error(t, err)

	_, err = s.Subscribe(ctx, "DOGEUSD", "1h")
	assert.ErrorIs(t, err, ErrUnknownPair)
	assert.Equal(t, "EURUSD", s.Subject().Symbol)
}

func TestSessionPNGFrameIsBase64(t *testing.T) {
	f := newFixture(t)
	s, err := f.uc.NewSession(chart.FormatPNG, 300, 200)
	require.NoError(t, err)

	frame, err := s.Subscribe(context.Background(), "EURUSD", "4h")
	require.NoError(t, err)
	assert.Equal(t, "4h", frame.Timeframe)

	raw, err := base64.StdEncoding.DecodeString(frame.Data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\x89PNG"))
}

// gatedCandles holds every load until release is closed.
type gatedCandles struct {
	fakeCandles
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCandles) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeCandles.GetLatestNCandles(ctx, symbol, n, tf)
}

func TestSharedRenderSurvivesFirstCallerLeaving(t *testing.T) {
	src := &gatedCandles{
		fakeCandles: fakeCandles{candles: map[string][]models.Candle{"EURUSD": series(20, t0)}},
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	uc := NewChartUseCase(src, testPairs, newFakeMetrics(), applogger.Nop())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := uc.Render(first, chartReq("json"))
		firstErr <- err
	}()
	<-src.entered

	type result struct {
		img *models.ChartImage
		err error
	}
	second := make(chan result, 1)
	go func() {
		img, err := uc.Render(context.Background(), chartReq("json"))
		second <- result{img, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, 20, r.img.Candles)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller never finished")
	}
	assert.Equal(t, 1, src.Calls())
}
