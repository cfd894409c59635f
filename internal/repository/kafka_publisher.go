package repository

import (
	"context"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/domain/repository"
	pkgkafka "MarketPull/pkg/kafka"
)

// KafkaPublisher emits accepted records as fact events, keyed by source
// id so per-source ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates the Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec *models.CanonicalRecord, decision string) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.SourceID), map[string]interface{}{
		"source_id":    rec.SourceID,
		"decision":     decision,
		"observed_at":  rec.ObservedAt,
		"crawled_at":   rec.CrawledAt,
		"strategy":     rec.StrategyUsed,
		"unit":         rec.Unit,
		"currency":     rec.Currency,
		"content_hash": rec.ContentHash,
		"fields":       rec.Fields,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
