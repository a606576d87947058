package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/cache"
	"CryptoArchive/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func newIngestor(a *memArchive, c cache.Service) *Ingestor {
	i := NewIngestor(a, a, c, metrics.Nop{}, nil)
	i.now = func() time.Time { return fixedNow }
	return i
}

func TestLogPricesSharesContextAndCaptureTime(t *testing.T) {
	a := &memArchive{}
	i := newIngestor(a, nil)
	idx := 38

	n, err := i.LogPrices(context.Background(), models.PriceBatch{
		Prices: []models.PricePoint{
			{Symbol: " btc", Price: 64000},
			{Symbol: "eth", Price: 3100, Volume24h: f64(1e9)},
		},
		MarketContext: models.MarketContext{BTCDominance: f64(57.3), AltcoinSeasonIndex: &idx},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, a.snaps, 2)
	for _, s := range a.snaps {
		assert.Equal(t, fixedNow, s.CapturedAt)
		assert.Equal(t, 57.3, *s.BTCDominance)
		assert.Equal(t, 38, *s.AltcoinSeasonIndex)
	}
	assert.Equal(t, "BTC", a.snaps[0].Symbol)
	assert.Equal(t, "ETH", a.snaps[1].Symbol)
}

func TestLogPricesKeepsExplicitCaptureTime(t *testing.T) {
	a := &memArchive{}
	at := fixedNow.Add(-time.Hour)
	_, err := newIngestor(a, nil).LogPrices(context.Background(), models.PriceBatch{
		Prices:     []models.PricePoint{{Symbol: "SOL", Price: 150}},
		CapturedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, at, a.snaps[0].CapturedAt)
}

func TestLogPricesRejectsWholeBatch(t *testing.T) {
	cases := map[string]models.PriceBatch{
		"empty":          {},
		"zero price":     {Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}, {Symbol: "ETH", Price: 0}}},
		"blank symbol":   {Prices: []models.PricePoint{{Symbol: "  ", Price: 1}}},
		"negative mcap":  {Prices: []models.PricePoint{{Symbol: "BTC", Price: 1, MarketCap: f64(-1)}}},
		"duplicate":      {Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}, {Symbol: "btc", Price: 2}}},
		"dominance >100": {Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}}, MarketContext: models.MarketContext{BTCDominance: f64(101)}},
	}
	for name, batch := range cases {
		t.Run(name, func(t *testing.T) {
			a := &memArchive{}
			_, err := newIngestor(a, nil).LogPrices(context.Background(), batch)
			assert.True(t, errs.Is(err, errs.KindValidation), "got %v", err)
			assert.Empty(t, a.snaps)
		})
	}
}

func TestLogPricesStorageUnavailable(t *testing.T) {
	a := &memArchive{err: errors.New("dial tcp: refused")}
	_, err := newIngestor(a, nil).LogPrices(context.Background(), models.PriceBatch{
		Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}},
	})
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
}

func TestLogRecommendationStartsPending(t *testing.T) {
	a := &memArchive{}
	id, err := newIngestor(a, nil).LogRecommendation(context.Background(), models.Recommendation{
		Symbol:               "sol",
		Action:               models.ActionBuy,
		Conviction:           models.ConvictionStrong,
		PredictedPriceChange: f64(20),
		PredictionTimeframe:  models.TF30D,
		Verdict:              models.VerdictYes,
		ActualPriceChange:    f64(99),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	r := a.recs[0]
	assert.Equal(t, "SOL", r.Symbol)
	assert.Equal(t, models.VerdictPending, r.Verdict)
	assert.Nil(t, r.ActualPriceChange)
	assert.Equal(t, fixedNow, r.IssuedAt)
	assert.Equal(t, []string{}, r.TechnicalSignals)
}

func TestLogRecommendationValidation(t *testing.T) {
	cases := map[string]models.Recommendation{
		"action":     {Symbol: "BTC", Action: "WAIT", Conviction: models.ConvictionWeak},
		"conviction": {Symbol: "BTC", Action: models.ActionBuy, Conviction: "MEH"},
		"entry zone": {Symbol: "BTC", Action: models.ActionBuy, Conviction: models.ConvictionWeak, EntryZoneMin: f64(10), EntryZoneMax: f64(9)},
		"timeframe":  {Symbol: "BTC", Action: models.ActionBuy, Conviction: models.ConvictionWeak, PredictionTimeframe: "90D"},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			a := &memArchive{}
			_, err := newIngestor(a, nil).LogRecommendation(context.Background(), rec)
			assert.True(t, errs.Is(err, errs.KindValidation))
			assert.Empty(t, a.recs)
		})
	}
}

func TestIngestInvalidatesHistoryCache(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "history:latest", []int{1}, time.Minute))
	require.NoError(t, c.Set(ctx, "lock:task:grade", "1", time.Minute))

	_, err := newIngestor(&memArchive{}, c).LogPrices(ctx, models.PriceBatch{Prices: []models.PricePoint{{Symbol: "BTC", Price: 1}}})
	require.NoError(t, err)

	var v []int
	assert.ErrorIs(t, c.Get(ctx, "history:latest", &v), cache.ErrCacheMiss)
	var s string
	assert.NoError(t, c.Get(ctx, "lock:task:grade", &s))
}

func TestQueuedIngestorPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	q := NewQueuedIngestor(pub, metrics.Nop{}, nil)
	q.now = func() time.Time { return fixedNow }

	n, err := q.LogPrices(context.Background(), models.PriceBatch{Prices: []models.PricePoint{{Symbol: "eth", Price: 3000}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.batches, 1)
	assert.Equal(t, fixedNow, pub.batches[0].CapturedAt)
	assert.Equal(t, "ETH", pub.batches[0].Prices[0].Symbol)

	_, err = q.LogRecommendation(context.Background(), models.Recommendation{Symbol: "ETH", Action: "NOPE", Conviction: models.ConvictionWeak})
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Empty(t, pub.recs)

	pub.err = errors.New("broker down")
	_, err = q.LogRecommendation(context.Background(), models.Recommendation{Symbol: "ETH", Action: models.ActionHold, Conviction: models.ConvictionWeak})
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
}
