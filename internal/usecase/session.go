package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"

	"FinChart/internal/chart"
	"FinChart/internal/domain/models"
)

// Session is one live chart view. It owns a surface and its renderer, and
// serializes Subscribe, Resize and Refresh so the last call wins.
type Session struct {
	uc       *ChartUseCase
	limit    int
	mu       sync.Mutex
	surface  chart.EncodingSurface
	renderer *chart.Renderer
	subject  models.Subject
	// current mirrors subject for readers that must not wait on a draw.
	current atomic.Value
}

// NewSession creates a session drawing format frames of width x height.
func (uc *ChartUseCase) NewSession(format chart.Format, width, height int) (*Session, error) {
	cfg := chart.NewConfig(uc.renderer...)
	surface, err := chart.NewSurface(format, width, height, cfg.Theme)
	if err != nil {
		return nil, err
	}
	return &Session{
		uc:       uc,
		limit:    uc.defLimit,
		surface:  surface,
		renderer: chart.NewRenderer(surface, uc.renderer...),
	}, nil
}

// Subject is the pair currently drawn; zero before the first Subscribe.
// It does not block while a frame is being drawn.
func (s *Session) Subject() models.Subject {
	subject, _ := s.current.Load().(models.Subject)
	return subject
}

// Subscribe switches the session to a pair and timeframe and draws it.
func (s *Session) Subscribe(ctx context.Context, symbol, timeframe string) (*models.StreamFrame, error) {
	subject, err := s.uc.Subject(symbol, timeframe)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
	s.current.Store(subject)
	return s.frame(ctx)
}

// Resize changes the surface size and redraws the current subject. It
// returns a nil frame when nothing is subscribed yet.
func (s *Session) Resize(ctx context.Context, width, height int) (*models.StreamFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.SetSize(width, height)
	s.renderer.Resize()
	if s.subject.IsZero() {
		return nil, nil
	}
	return s.frame(ctx)
}

// Refresh redraws the current subject with fresh data.
func (s *Session) Refresh(ctx context.Context) (*models.StreamFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject.IsZero() {
		return nil, nil
	}
	return s.frame(ctx)
}

func (s *Session) frame(ctx context.Context) (*models.StreamFrame, error) {
	series, err := s.uc.Load(ctx, s.subject, LoadParams{Limit: s.limit, Analysis: true})
	if err != nil {
		return nil, err
	}

	s.renderer.Render(series.Candles, series.Analysis)
	var buf bytes.Buffer
	if err := s.surface.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode frame %s: %w", s.subject, err)
	}

	w, h := s.renderer.Size()
	f := &models.StreamFrame{
		Type:      "frame",
		Symbol:    s.subject.Symbol,
		Timeframe: s.subject.Timeframe,
		Format:    string(s.surface.Format()),
		Width:     w,
		Height:    h,
	}
	// binary frames travel base64 encoded inside the JSON message
	if s.surface.Format() == chart.FormatPNG {
		f.Data = base64.StdEncoding.EncodeToString(buf.Bytes())
	} else {
		f.Data = buf.String()
	}
	if series.Analysis != nil {
		sig := series.Analysis.SignalSummary
		f.Signal = &sig
	}
	return f, nil
}
