package repository

import (
	"context"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaEventPublisher publishes chart.rendered events keyed by subject, so
// events of one chart stay ordered on one partition.
type KafkaEventPublisher struct {
	p     MessagePublisher
	topic string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(p MessagePublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{p: p, topic: topic}
}

func (k *KafkaEventPublisher) PublishRendered(ctx context.Context, e models.ChartRendered) error {
	key := models.Subject{Symbol: e.Symbol, Timeframe: e.Timeframe}.String()
	return k.p.Publish(ctx, k.topic, []byte(key), e)
}

func (k *KafkaEventPublisher) Close() error { return k.p.Close() }

// NopEventPublisher drops events. It is used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishRendered(context.Context, models.ChartRendered) error { return nil }

func (NopEventPublisher) Close() error { return nil }
