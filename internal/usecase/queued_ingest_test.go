package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueuedIngestor(pub *recordingPublisher) *QueuedIngestor {
	q := NewQueuedIngestor(pub, metrics.Nop{}, nil)
	q.now = func() time.Time { return fixedNow }
	return q
}

func TestQueuedIngestorStampsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	q := newQueuedIngestor(pub)
	assert.True(t, q.Queued())

	n, err := q.LogPrices(context.Background(), models.PriceBatch{Prices: []models.PricePoint{{Symbol: " eth ", Price: 3000}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "ETH", pub.batches[0].Prices[0].Symbol)
	assert.True(t, pub.batches[0].CapturedAt.Equal(fixedNow))

	id, err := q.LogRecommendation(context.Background(), models.Recommendation{
		Symbol: "sol", Action: models.ActionBuy, Conviction: models.ConvictionStrong,
	})
	require.NoError(t, err)
	assert.Zero(t, id)
	require.Len(t, pub.recs, 1)
	assert.Equal(t, models.VerdictPending, pub.recs[0].Verdict)
	assert.True(t, pub.recs[0].IssuedAt.Equal(fixedNow))
}

func TestQueuedIngestorRejectsBeforePublishing(t *testing.T) {
	pub := &recordingPublisher{}
	q := newQueuedIngestor(pub)

	_, err := q.LogPrices(context.Background(), models.PriceBatch{Prices: []models.PricePoint{{Symbol: "BTC", Price: 0}}})
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Empty(t, pub.batches)
}

func TestQueuedIngestorBrokerDown(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("no leader")}
	_, err := newQueuedIngestor(pub).LogPrices(context.Background(), models.PriceBatch{Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}}})
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
}
