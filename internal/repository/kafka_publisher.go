package repository

import (
	"context"

	"CryptoArchive/internal/domain/models"
	domrepo "CryptoArchive/internal/domain/repository"
	pkgkafka "CryptoArchive/pkg/kafka"
)

// producer is the subset of pkg/kafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

type KafkaTopics struct {
	Prices          string
	Recommendations string
	Verdicts        string
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer producer
	topics   KafkaTopics
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(p *pkgkafka.Producer, topics KafkaTopics) *KafkaPublisher {
	return newKafkaPublisher(p, topics)
}

func newKafkaPublisher(p producer, topics KafkaTopics) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topics: topics}
}

// PublishPrices sends the whole batch as one message so the consumer writes it in one
// statement with a single capture time.
func (p *KafkaPublisher) PublishPrices(ctx context.Context, batch models.PriceBatch) error {
	if len(batch.Prices) == 0 {
		return nil
	}
	return p.producer.Publish(ctx, p.topics.Prices, []byte(batch.Prices[0].Symbol), batch)
}

func (p *KafkaPublisher) PublishRecommendation(ctx context.Context, rec models.Recommendation) error {
	return p.producer.Publish(ctx, p.topics.Recommendations, []byte(rec.Symbol), rec)
}

func (p *KafkaPublisher) PublishVerdict(ctx context.Context, ev models.VerdictEvent) error {
	return p.producer.Publish(ctx, p.topics.Verdicts, []byte(ev.Symbol), ev)
}

// PublishVerdicts sends a run's verdicts in one batch keyed by symbol.
func (p *KafkaPublisher) PublishVerdicts(ctx context.Context, evs []models.VerdictEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = pkgkafka.Message{Key: []byte(ev.Symbol), Value: ev}
	}
	return p.producer.PublishBatch(ctx, p.topics.Verdicts, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops everything. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishPrices(context.Context, models.PriceBatch) error { return nil }
func (NopPublisher) PublishRecommendation(context.Context, models.Recommendation) error { return nil }
func (NopPublisher) PublishVerdict(context.Context, models.VerdictEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
