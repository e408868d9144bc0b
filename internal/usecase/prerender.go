package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	applogger "FinChart/pkg/logger"
	"FinChart/pkg/queue"

	"github.com/creasty/defaults"
)

const PrerenderType = "chart.prerender"

// PrerenderJob draws a chart into the image cache ahead of the first request for it.
type PrerenderJob struct {
	uc *ChartUseCase
	l  *applogger.Logger
}

func NewPrerenderJob(uc *ChartUseCase, l *applogger.Logger) *PrerenderJob {
	return &PrerenderJob{uc: uc, l: l}
}

func (j *PrerenderJob) Name() string { return "chart_prerender" }

func (j *PrerenderJob) Type() string { return PrerenderType }

func (j *PrerenderJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.ChartRequest](payload)
	if err != nil {
		return err
	}

	img, err := j.uc.Render(ctx, *req)
	switch {
	case errors.Is(err, ErrUnknownPair), errors.Is(err, domrepo.ErrNoCandles):
		// retrying cannot help
		j.l.Debug("prerender skipped", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return nil
	case err != nil:
		return err
	}
	j.l.Debug("prerendered",
		applogger.String("subject", img.Subject.String()),
		applogger.String("format", img.Format),
		applogger.Bool("cached", img.Cached))
	return nil
}

// Prerenderer schedules warm-up renders of the default chart of a subject,
// one per format, so the first GET after an update is a cache hit.
type Prerenderer struct {
	q       queue.Publisher
	formats []string
	metrics domrepo.Metrics
}

func NewPrerenderer(q queue.Publisher, formats []string, metrics domrepo.Metrics) *Prerenderer {
	return &Prerenderer{q: q, formats: formats, metrics: metrics}
}

// Schedule enqueues the requests a bare GET /api/chart for s would make.
func (p *Prerenderer) Schedule(ctx context.Context, s models.Subject) error {
	for _, format := range p.formats {
		var req models.ChartRequest
		if err := defaults.Set(&req); err != nil {
			return err
		}
		req.Symbol, req.Timeframe, req.Format = s.Symbol, s.Timeframe, format

		if err := p.q.Enqueue(ctx, PrerenderType, req); err != nil {
			p.metrics.RecordError("prerender_enqueue")
			return fmt.Errorf("enqueue prerender %s %s: %w", s, format, err)
		}
	}
	return nil
}
