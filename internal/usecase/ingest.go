package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	"CryptoArchive/pkg/cache"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/util"
)

const (
	opLogPrices         = "log_prices"
	opLogRecommendation = "log_recommendation"
)

// Ingestor validates and writes snapshots and recommendations to the archive.
type Ingestor struct {
	prices  drepo.PriceArchive
	recs    drepo.RecommendationArchive
	cache   cache.Service
	metrics drepo.Metrics
	source  string
	now     func() time.Time
	l       *applogger.Logger
}

var _ dsvc.Ingestor = (*Ingestor)(nil)

// NewIngestor creates an ingestor. c may be nil when caching is disabled.
func NewIngestor(prices drepo.PriceArchive, recs drepo.RecommendationArchive, c cache.Service, m drepo.Metrics, l *applogger.Logger) *Ingestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &Ingestor{prices: prices, recs: recs, cache: c, metrics: m, source: "api", now: time.Now, l: l}
}

// WithSource returns a copy that labels written snapshots with source.
func (i *Ingestor) WithSource(source string) *Ingestor {
	cp := *i
	cp.source = source
	return &cp
}

// ValidatePriceBatch normalizes symbols in place and rejects malformed points.
func ValidatePriceBatch(batch *models.PriceBatch) error {
	if len(batch.Prices) == 0 {
		return errs.Validation(opLogPrices, "prices", "at least one price point is required")
	}
	seen := make(map[string]struct{}, len(batch.Prices))
	for idx := range batch.Prices {
		p := &batch.Prices[idx]
		p.Symbol = util.NormalizeSymbol(p.Symbol)
		field := fmt.Sprintf("prices[%d]", idx)
		switch {
		case p.Symbol == "":
			return errs.Validation(opLogPrices, field+".symbol", "symbol is required")
		case p.Price <= 0:
			return errs.Validation(opLogPrices, field+".price", "price must be positive")
		case p.Volume24h != nil && *p.Volume24h < 0:
			return errs.Validation(opLogPrices, field+".volume24h", "volume24h must not be negative")
		case p.MarketCap != nil && *p.MarketCap < 0:
			return errs.Validation(opLogPrices, field+".marketCap", "marketCap must not be negative")
		}
		if _, dup := seen[p.Symbol]; dup {
			return errs.Validation(opLogPrices, field+".symbol", "duplicate symbol "+p.Symbol+" in one capture")
		}
		seen[p.Symbol] = struct{}{}
	}
	if d := batch.BTCDominance; d != nil && (*d < 0 || *d > 100) {
		return errs.Validation(opLogPrices, "btcDominance", "btcDominance must be between 0 and 100")
	}
	if idx := batch.AltcoinSeasonIndex; idx != nil && (*idx < 0 || *idx > 100) {
		return errs.Validation(opLogPrices, "altcoinSeasonIndex", "altcoinSeasonIndex must be between 0 and 100")
	}
	return nil
}

// LogPrices writes one snapshot per point, all sharing the batch's market context and
// capture time. Nothing is written when any point is invalid.
func (i *Ingestor) LogPrices(ctx context.Context, batch models.PriceBatch) (int, error) {
	start := time.Now()
	if err := ValidatePriceBatch(&batch); err != nil {
		i.metrics.RecordError(string(errs.KindValidation))
		return 0, err
	}
	capturedAt := batch.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = i.now()
	}

	n, err := i.prices.LogPrices(ctx, capturedAt.UTC(), batch.Prices, batch.MarketContext)
	if err != nil {
		i.metrics.RecordError(errorLabel(err))
		return 0, err
	}

	i.metrics.RecordSnapshotsWritten(i.source, n)
	for _, p := range batch.Prices {
		i.metrics.RecordLastPrice(p.Symbol, p.Price)
	}
	i.metrics.RecordLatency(opLogPrices, time.Since(start).Seconds())
	i.invalidate(ctx)

	i.l.Info("prices logged",
		applogger.String("source", i.source),
		applogger.Int("count", n),
		applogger.Time("captured_at", capturedAt),
	)
	return n, nil
}

// LogRecommendation stores rec as PENDING and returns its id.
func (i *Ingestor) LogRecommendation(ctx context.Context, rec models.Recommendation) (int64, error) {
	start := time.Now()
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		i.metrics.RecordError(string(errs.KindValidation))
		return 0, err
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = i.now()
	}
	rec.IssuedAt = rec.IssuedAt.UTC()

	id, err := i.recs.LogRecommendation(ctx, &rec)
	if err != nil {
		i.metrics.RecordError(errorLabel(err))
		return 0, err
	}

	i.metrics.RecordRecommendationLogged(string(rec.Action))
	i.metrics.RecordLatency(opLogRecommendation, time.Since(start).Seconds())
	i.invalidate(ctx)

	i.l.Info("recommendation logged",
		applogger.Int64("id", id),
		applogger.String("symbol", rec.Symbol),
		applogger.String("action", string(rec.Action)),
		applogger.String("timeframe", string(rec.PredictionTimeframe)),
	)
	return id, nil
}

func (i *Ingestor) invalidate(ctx context.Context) {
	invalidateHistory(ctx, i.cache, i.l)
}

// invalidateHistory drops cached history reads after a write. Failure only delays
// freshness until TTL.
func invalidateHistory(ctx context.Context, c cache.Service, l *applogger.Logger) {
	if c == nil {
		return
	}
	if err := c.DeleteByPattern(ctx, cache.Pattern(historyNamespace)); err != nil {
		l.Warn("cache invalidation failed", applogger.Error(err))
	}
}

func errorLabel(err error) string {
	if k := errs.KindOf(err); k != "" {
		return string(k)
	}
	return "internal"
}
