package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"FinChart/internal/domain/models"
	applogger "FinChart/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureQueue struct {
	types    []string
	payloads []json.RawMessage
	err      error
}

func (q *captureQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, b)
	return nil
}

func TestPrerendererSchedulesDefaultRequests(t *testing.T) {
	q := &captureQueue{}
	p := NewPrerenderer(q, []string{"png", "svg"}, newFakeMetrics())

	require.NoError(t, p.Schedule(context.Background(), models.Subject{Symbol: "EURUSD", Timeframe: "4h"}))
	require.Len(t, q.payloads, 2)
	assert.Equal(t, []string{PrerenderType, PrerenderType}, q.types)

	var req models.ChartRequest
	require.NoError(t, json.Unmarshal(q.payloads[1], &req))
	assert.Equal(t, models.ChartRequest{
		Symbol: "EURUSD", Timeframe: "4h", Width: 1200, Height: 600,
		Format: "svg", Analysis: "on",
	}, req)
}

func TestPrerenderedDefaultsMatchBareRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := &captureQueue{}
	require.NoError(t, NewPrerenderer(q, []string{"png"}, f.metrics).Schedule(ctx, models.Subject{Symbol: "EURUSD", Timeframe: "1h"}))
	require.NoError(t, NewPrerenderJob(f.uc, applogger.Nop()).Handle(ctx, q.payloads[0]))

	// what the HTTP handler passes on for ?symbol=EURUSD after defaults
	bare := models.ChartRequest{Symbol: "EURUSD", Width: 1200, Height: 600, Format: "png", Analysis: "on"}
	img, err := f.uc.Render(ctx, bare)
	require.NoError(t, err)
	assert.True(t, img.Cached)
}

func TestPrerendererEnqueueError(t *testing.T) {
	m := newFakeMetrics()
	p := NewPrerenderer(&captureQueue{err: errors.New("down")}, []string{"png"}, m)
	assert.Error(t, p.Schedule(context.Background(), models.Subject{Symbol: "EURUSD", Timeframe: "1h"}))
	assert.Equal(t, 1, m.errors["prerender_enqueue"])
}

func TestPrerenderJobFillsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := NewPrerenderJob(f.uc, applogger.Nop())

	payload, err := json.Marshal(chartReq("svg"))
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, payload))

	img, err := f.uc.Render(ctx, chartReq("svg"))
	require.NoError(t, err)
	assert.True(t, img.Cached)
}

func TestPrerenderJobSkipsHopelessRequests(t *testing.T) {
	f := newFixture(t)
	job := NewPrerenderJob(f.uc, applogger.Nop())

	unknown, _ := json.Marshal(models.ChartRequest{Symbol: "DOGEUSD", Format: "png", Width: 400, Height: 300})
	assert.NoError(t, job.Handle(context.Background(), unknown))

	empty, _ := json.Marshal(models.ChartRequest{Symbol: "XAUUSD", Format: "png", Width: 400, Height: 300})
	assert.NoError(t, job.Handle(context.Background(), empty))

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{`)))
}
