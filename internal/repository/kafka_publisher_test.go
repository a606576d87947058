package repository

import (
	"context"
	"testing"
	"time"

	"CryptoArchive/internal/domain/models"
	pkgkafka "CryptoArchive/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	sent   []sent
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.sent = append(p.sent, sent{topic: topic, key: string(key), value: value})
	return nil
}

func (p *fakeProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	for _, m := range msgs {
		p.sent = append(p.sent, sent{topic: topic, key: string(m.Key), value: m.Value})
	}
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

var testTopics = KafkaTopics{Prices: "archive.prices", Recommendations: "archive.recommendations", Verdicts: "archive.verdicts"}

func TestKafkaPublisherRoutesByTopic(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaPublisher(fp, testTopics)
	ctx := context.Background()

	require.NoError(t, p.PublishPrices(ctx, models.PriceBatch{}))
	assert.Empty(t, fp.sent)

	batch := models.PriceBatch{Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}, {Symbol: "ETH", Price: 2}}}
	require.NoError(t, p.PublishPrices(ctx, batch))
	require.NoError(t, p.PublishRecommendation(ctx, models.Recommendation{Symbol: "SOL"}))
	require.NoError(t, p.PublishVerdict(ctx, models.VerdictEvent{Symbol: "LINK", Verdict: models.VerdictYes, GradedAt: time.Now()}))

	require.Len(t, fp.sent, 3)
	assert.Equal(t, "archive.prices", fp.sent[0].topic)
	assert.Equal(t, batch, fp.sent[0].value)
	assert.Equal(t, "archive.recommendations", fp.sent[1].topic)
	assert.Equal(t, "SOL", fp.sent[1].key)
	assert.Equal(t, "archive.verdicts", fp.sent[2].topic)
	assert.Equal(t, "LINK", fp.sent[2].key)

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}

func TestKafkaPublisherBatchesVerdicts(t *testing.T) {
	fp := &fakeProducer{}
	p := newKafkaPublisher(fp, testTopics)

	require.NoError(t, p.PublishVerdicts(context.Background(), []models.VerdictEvent{
		{RecommendationID: 1, Symbol: "BTC"},
		{RecommendationID: 2, Symbol: "ETH"},
	}))
	require.Len(t, fp.sent, 2)
	assert.Equal(t, "ETH", fp.sent[1].key)
}
