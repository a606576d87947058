package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	db, err := sqlite.OpenMemory(strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	require.NoError(t, err)
	s := NewSQLiteArchive(db, time.Second, nil)
	require.NoError(t, s.InitSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLitePricesNewestFirst(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	idx := 40

	for i := 0; i < 3; i++ {
		n, err := s.LogPrices(ctx, day.Add(time.Duration(i)*24*time.Hour), []models.PricePoint{
			{Symbol: "BTC", Price: 60000 + float64(i)*1000},
			{Symbol: "ETH", Price: 3000 + float64(i)*100, PriceChange24h: f64(1.25)},
		}, models.MarketContext{BTCDominance: f64(57), AltcoinSeasonIndex: &idx})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	got, err := s.PricesBySymbolSince(ctx, "ETH", day.Add(12*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3200.0, got[0].Price)
	assert.Equal(t, 3100.0, got[1].Price)
	require.NotNil(t, got[0].PriceChange24h)
	assert.Equal(t, 1.25, *got[0].PriceChange24h)
	require.NotNil(t, got[0].AltcoinSeasonIndex)
	assert.Equal(t, 40, *got[0].AltcoinSeasonIndex)
	assert.True(t, got[0].CapturedAt.Equal(day.Add(48*time.Hour)))

	limited, err := s.PricesBySymbolSince(ctx, "BTC", day, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 62000.0, limited[0].Price)
	assert.Nil(t, limited[0].PriceChange24h)
}

func TestSQLiteLogPricesEmpty(t *testing.T) {
	s := newSQLiteArchive(t)
	n, err := s.LogPrices(context.Background(), time.Now(), nil, models.MarketContext{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteLatestPerSymbol(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.LogPrices(ctx, day, []models.PricePoint{{Symbol: "BTC", Price: 1}, {Symbol: "SOL", Price: 10}}, models.MarketContext{})
	require.NoError(t, err)
	_, err = s.LogPrices(ctx, day.Add(time.Hour), []models.PricePoint{{Symbol: "BTC", Price: 2}}, models.MarketContext{})
	require.NoError(t, err)

	got, err := s.LatestPerSymbol(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 2.0, got[0].Price)
	assert.Equal(t, "SOL", got[1].Symbol)
	assert.Equal(t, 10.0, got[1].Price)
}

func TestSQLiteNearestPrice(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, p := range []float64{100, 110, 120} {
		_, err := s.LogPrices(ctx, day.Add(time.Duration(i)*24*time.Hour), []models.PricePoint{{Symbol: "LINK", Price: p}}, models.MarketContext{})
		require.NoError(t, err)
	}

	snap, err := s.NearestPrice(ctx, "LINK", day.Add(30*time.Hour), 12*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 110.0, snap.Price)

	miss, err := s.NearestPrice(ctx, "LINK", day.Add(10*24*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLiteRecommendationLifecycle(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	rec := &models.Recommendation{
		Symbol:               "SOL",
		Action:               models.ActionBuy,
		Conviction:           models.ConvictionStrong,
		Allocation:           f64(10),
		PredictedPriceChange: f64(20),
		PredictionTimeframe:  models.TF30D,
		TechnicalSignals:     []string{"Automated daily update"},
		IssuedAt:             issued,
	}
	id, err := s.LogRecommendation(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	pending, err := s.PendingDue(ctx, models.TF30D, issued.Add(time.Hour), 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.VerdictPending, pending[0].Verdict)
	assert.Nil(t, pending[0].ActualPriceChange)
	assert.Equal(t, []string{"Automated daily update"}, pending[0].TechnicalSignals)

	gradedAt := issued.Add(31 * 24 * time.Hour)
	require.NoError(t, s.UpdateVerdict(ctx, id, 25, models.VerdictYes, gradedAt))

	err = s.UpdateVerdict(ctx, id, -5, models.VerdictNo, gradedAt)
	assert.True(t, errs.Is(err, errs.KindAlreadyGraded))

	err = s.UpdateVerdict(ctx, id+100, 1, models.VerdictYes, gradedAt)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	got, err := s.RecommendationsBySymbolSince(ctx, "SOL", issued.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.VerdictYes, got[0].Verdict)
	require.NotNil(t, got[0].ActualPriceChange)
	assert.Equal(t, 25.0, *got[0].ActualPriceChange)
	require.NotNil(t, got[0].GradedAt)
	assert.True(t, gradedAt.Equal(*got[0].GradedAt))

	pending, err = s.PendingDue(ctx, models.TF30D, gradedAt, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLitePendingDue(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(predicted *float64, tf models.Timeframe, at time.Time) int64 {
		id, err := s.LogRecommendation(ctx, &models.Recommendation{
			Symbol: "SOL", Action: models.ActionHold, Conviction: models.ConvictionModerate,
			PredictedPriceChange: predicted, PredictionTimeframe: tf, IssuedAt: at,
		})
		require.NoError(t, err)
		return id
	}
	for i := 0; i < 3; i++ {
		add(nil, "", issued)
		add(nil, models.TF1D, issued)
	}
	add(f64(10), models.TF30D, issued)
	first := add(f64(5), models.TF1D, issued)
	second := add(f64(5), models.TF1D, issued.Add(time.Hour))
	add(f64(5), models.TF1D, issued.Add(48*time.Hour))

	cutoff := issued.Add(time.Hour)
	page, err := s.PendingDue(ctx, models.TF1D, cutoff, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first, page[0].ID)

	page, err = s.PendingDue(ctx, models.TF1D, cutoff, page[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second, page[0].ID)

	page, err = s.PendingDue(ctx, models.TF1D, cutoff, second, 1)
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, s.UpdateVerdict(ctx, first, 6, models.VerdictYes, cutoff))
	page, err = s.PendingDue(ctx, models.TF1D, cutoff, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second, page[0].ID)
}

func TestSQLiteAccuracyCounts(t *testing.T) {
	s := newSQLiteArchive(t)
	ctx := context.Background()
	issued := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(symbol string, tf models.Timeframe, v models.Verdict) {
		id, err := s.LogRecommendation(ctx, &models.Recommendation{
			Symbol: symbol, Action: models.ActionBuy, Conviction: models.ConvictionModerate,
			PredictedPriceChange: f64(5), PredictionTimeframe: tf, IssuedAt: issued,
		})
		require.NoError(t, err)
		if v.IsTerminal() {
			require.NoError(t, s.UpdateVerdict(ctx, id, 5, v, issued.Add(48*time.Hour)))
		}
	}
	add("BTC", models.TF1D, models.VerdictYes)
	add("BTC", models.TF1D, models.VerdictNo)
	add("BTC", models.TF7D, models.VerdictPending)
	add("ETH", models.TF1D, models.VerdictYes)

	all, err := s.AccuracyCounts(ctx, models.AccuracyFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.AccuracyCounts{Total: 4, Accurate: 2, Inaccurate: 1, Pending: 1}, all)

	btc1d, err := s.AccuracyCounts(ctx, models.AccuracyFilter{Symbol: "BTC", Timeframe: models.TF1D})
	require.NoError(t, err)
	assert.Equal(t, models.AccuracyCounts{Total: 2, Accurate: 1, Inaccurate: 1}, btc1d)

	none, err := s.AccuracyCounts(ctx, models.AccuracyFilter{Symbol: "DOGE"})
	require.NoError(t, err)
	assert.Equal(t, models.AccuracyCounts{}, none)
}
