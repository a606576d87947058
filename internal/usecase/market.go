package usecase

import (
	"context"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	"CryptoArchive/internal/services/market"
	applogger "CryptoArchive/pkg/logger"
)

// Market computes derived signals from the live listing. Nothing here is persisted.
type Market struct {
	source  drepo.PriceSource
	metrics drepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

var _ dsvc.MarketReader = (*Market)(nil)

func NewMarket(source drepo.PriceSource, m drepo.Metrics, l *applogger.Logger) *Market {
	if l == nil {
		l = applogger.Nop()
	}
	return &Market{source: source, metrics: m, now: time.Now, l: l}
}

func (s *Market) Dominance(ctx context.Context) (models.DominanceSnapshot, error) {
	b, err := s.source.FetchBasket(ctx)
	if err != nil {
		s.metrics.RecordError(errorLabel(err))
		return models.DominanceSnapshot{}, err
	}
	return s.dominance(b)
}

func (s *Market) Overview(ctx context.Context) (models.MarketOverview, error) {
	b, err := s.source.FetchBasket(ctx)
	if err != nil {
		s.metrics.RecordError(errorLabel(err))
		return models.MarketOverview{}, err
	}
	d, err := s.dominance(b)
	if err != nil {
		return models.MarketOverview{}, err
	}
	return models.MarketOverview{
		Dominance:          d,
		Sentiment:          market.Sentiment(market.BasketChanges(b)),
		Total3MarketCap:    market.Total3(b),
		AltcoinSeasonIndex: market.AltcoinSeasonIndex(b),
	}, nil
}

func (s *Market) dominance(b models.Basket) (models.DominanceSnapshot, error) {
	d, err := market.ComputeDominance(b, s.now().UTC())
	if err != nil {
		s.metrics.RecordError(string(errs.KindIncompleteBasket))
		s.l.Warn("dominance not computed", applogger.Error(err))
		return models.DominanceSnapshot{}, err
	}
	if len(d.Anomalies) > 0 {
		s.l.Warn("dominance anomalies", applogger.Strings("anomalies", d.Anomalies))
	}
	s.metrics.RecordDominance(d)
	return d, nil
}
