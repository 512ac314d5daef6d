package repository

import (
	"context"

	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/domain/repository"
	pkgkafka "MarketWatch/pkg/kafka"
)

// KafkaSignalPublisher publishes SignalEvents keyed by symbol.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

var _ repository.SignalPublisher = (*KafkaSignalPublisher)(nil)

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), models.NewSignalEvent(s))
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Symbol), Value: models.NewSignalEvent(s)}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error { return p.producer.Close() }
