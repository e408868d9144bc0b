package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	pkgkafka "FinChart/pkg/kafka"
	applogger "FinChart/pkg/logger"
)

// SubjectSink receives subjects whose candles changed.
type SubjectSink interface {
	Process(ctx context.Context, s models.Subject) error
}

// KafkaCandlesHandler consumes candles.updated events and forwards the
// affected subject to the refresh pipeline.
type KafkaCandlesHandler struct {
	topic   string
	uc      *ChartUseCase
	sink    SubjectSink
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewKafkaCandlesHandler(topic string, uc *ChartUseCase, sink SubjectSink, metrics domrepo.Metrics, l *applogger.Logger) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, uc: uc, sink: sink, metrics: metrics, l: l}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, timeframe, t}
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var e models.CandlesUpdated
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode candles.updated: %w", err)
	}
	if e.T > 0 {
		h.metrics.RecordLatency("candles_event_lag", time.Since(e.EventTime()).Seconds())
	}

	s, err := h.uc.Subject(e.Symbol, e.Timeframe)
	if err != nil {
		// pairs outside the catalogue are never charted
		if errors.Is(err, ErrUnknownPair) {
			h.l.Debug("candles.updated for unknown pair", applogger.String("symbol", e.Symbol))
			return nil
		}
		return err
	}
	if e.Timeframe != "" && !domrepo.IsValidTimeframe(domrepo.Timeframe(e.Timeframe)) {
		h.metrics.RecordError("consumer_timeframe")
		return nil
	}

	return h.sink.Process(ctx, s)
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
