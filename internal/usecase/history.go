package usecase

import (
	"context"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	"CryptoArchive/pkg/cache"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/util"
)

const historyNamespace = "history"

// MaxHistoryDays bounds read windows.
const MaxHistoryDays = 365

// History serves read-side aggregation over the archive. Results are cached for a
// short TTL; writers invalidate the whole history namespace.
type History struct {
	prices  drepo.PriceArchive
	recs    drepo.RecommendationArchive
	cache   cache.Service
	ttl     time.Duration
	metrics drepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

var _ dsvc.HistoryReader = (*History)(nil)

// NewHistory creates the query service. c may be nil.
func NewHistory(prices drepo.PriceArchive, recs drepo.RecommendationArchive, c cache.Service, ttl time.Duration, m drepo.Metrics, l *applogger.Logger) *History {
	if l == nil {
		l = applogger.Nop()
	}
	return &History{prices: prices, recs: recs, cache: c, ttl: ttl, metrics: m, now: time.Now, l: l}
}

func validateWindow(op, symbol string, days int) (string, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return "", errs.Validation(op, "symbol", "symbol is required")
	}
	if days < 1 || days > MaxHistoryDays {
		return "", errs.Validation(op, "days", "days must be between 1 and 365")
	}
	return symbol, nil
}

// HistoricalPrices returns snapshots captured in the last days days, newest first,
// capped at days rows.
func (h *History) HistoricalPrices(ctx context.Context, symbol string, days int) ([]models.PriceSnapshot, error) {
	const op = "historical_prices"
	symbol, err := validateWindow(op, symbol, days)
	if err != nil {
		return nil, err
	}
	key := cache.Key(historyNamespace, "prices", symbol, days)
	var out []models.PriceSnapshot
	if h.cached(ctx, key, &out) {
		return out, nil
	}

	start := time.Now()
	out, err = h.prices.PricesBySymbolSince(ctx, symbol, util.DaysAgo(h.now(), days), days)
	if err != nil {
		h.metrics.RecordError(errorLabel(err))
		return nil, err
	}
	h.metrics.RecordLatency(op, time.Since(start).Seconds())
	h.store(ctx, key, out)
	return out, nil
}

// HistoricalRecommendations mirrors HistoricalPrices for recommendations.
func (h *History) HistoricalRecommendations(ctx context.Context, symbol string, days int) ([]models.Recommendation, error) {
	const op = "historical_recommendations"
	symbol, err := validateWindow(op, symbol, days)
	if err != nil {
		return nil, err
	}
	key := cache.Key(historyNamespace, "recs", symbol, days)
	var out []models.Recommendation
	if h.cached(ctx, key, &out) {
		return out, nil
	}

	start := time.Now()
	out, err = h.recs.RecommendationsBySymbolSince(ctx, symbol, util.DaysAgo(h.now(), days), days)
	if err != nil {
		h.metrics.RecordError(errorLabel(err))
		return nil, err
	}
	h.metrics.RecordLatency(op, time.Since(start).Seconds())
	h.store(ctx, key, out)
	return out, nil
}

// PredictionAccuracy counts verdicts matching f. The rate is accurate/(accurate+inaccurate)
// as a percentage with two decimals, and 0 when nothing has been graded.
func (h *History) PredictionAccuracy(ctx context.Context, f models.AccuracyFilter) (models.AccuracyStats, error) {
	const op = "prediction_accuracy"
	f.Symbol = util.NormalizeSymbol(f.Symbol)
	if f.Timeframe != "" && !f.Timeframe.IsValid() {
		return models.AccuracyStats{}, errs.Validation(op, "timeframe", "timeframe must be one of 1D, 7D, 30D")
	}
	key := cache.Key(historyNamespace, "accuracy", f.Symbol, string(f.Timeframe))
	var out models.AccuracyStats
	if h.cached(ctx, key, &out) {
		return out, nil
	}

	c, err := h.recs.AccuracyCounts(ctx, f)
	if err != nil {
		h.metrics.RecordError(errorLabel(err))
		return models.AccuracyStats{}, err
	}
	out = AccuracyFromCounts(c)
	h.store(ctx, key, out)
	return out, nil
}

// AccuracyFromCounts derives the stats view from raw tallies.
func AccuracyFromCounts(c models.AccuracyCounts) models.AccuracyStats {
	return models.AccuracyStats{
		Total:        c.Total,
		Accurate:     c.Accurate,
		Inaccurate:   c.Inaccurate,
		Pending:      c.Pending,
		AccuracyRate: util.Ratio(c.Accurate, c.Accurate+c.Inaccurate),
	}
}

// AllLatestPrices returns the newest snapshot of every known symbol.
func (h *History) AllLatestPrices(ctx context.Context) ([]models.PriceSnapshot, error) {
	key := cache.Key(historyNamespace, "latest")
	var out []models.PriceSnapshot
	if h.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := h.prices.LatestPerSymbol(ctx)
	if err != nil {
		h.metrics.RecordError(errorLabel(err))
		return nil, err
	}
	h.store(ctx, key, out)
	return out, nil
}

func (h *History) cached(ctx context.Context, key string, dest interface{}) bool {
	if h.cache == nil {
		return false
	}
	err := h.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !cache.IsMiss(err) {
		h.l.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	return false
}

func (h *History) store(ctx context.Context, key string, v interface{}) {
	if h.cache == nil || h.ttl <= 0 {
		return
	}
	if err := h.cache.Set(ctx, key, v, h.ttl); err != nil {
		h.l.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
