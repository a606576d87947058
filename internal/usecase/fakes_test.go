package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
)

// memArchive is an in-memory PriceArchive and RecommendationArchive.
type memArchive struct {
	mu     sync.Mutex
	snaps  []models.PriceSnapshot
	recs   []models.Recommendation
	nextID int64
	err    error
	reads  int

	dueQueries int
}

func (m *memArchive) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memArchive) LogPrices(_ context.Context, at time.Time, points []models.PricePoint, mc models.MarketContext) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, errs.StorageUnavailable("log_prices", m.err)
	}
	for _, p := range points {
		s := models.NewPriceSnapshot(p, mc, at)
		s.ID = m.id()
		m.snaps = append(m.snaps, s)
	}
	return len(points), nil
}

func (m *memArchive) PricesBySymbolSince(_ context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.err != nil {
		return nil, errs.StorageUnavailable("prices_by_symbol", m.err)
	}
	var out []models.PriceSnapshot
	for _, s := range m.snaps {
		if s.Symbol == symbol && !s.CapturedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArchive) LatestPerSymbol(context.Context) ([]models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[string]models.PriceSnapshot{}
	for _, s := range m.snaps {
		if cur, ok := latest[s.Symbol]; !ok || s.CapturedAt.After(cur.CapturedAt) {
			latest[s.Symbol] = s
		}
	}
	out := make([]models.PriceSnapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memArchive) NearestPrice(_ context.Context, symbol string, at time.Time, tol time.Duration) (*models.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, errs.StorageUnavailable("nearest_price", m.err)
	}
	var best *models.PriceSnapshot
	var bestDist time.Duration
	for i := range m.snaps {
		s := m.snaps[i]
		if s.Symbol != symbol {
			continue
		}
		d := s.CapturedAt.Sub(at)
		if d < 0 {
			d = -d
		}
		if d > tol {
			continue
		}
		if best == nil || d < bestDist {
			cp := s
			best, bestDist = &cp, d
		}
	}
	return best, nil
}

func (m *memArchive) LogRecommendation(_ context.Context, rec *models.Recommendation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, errs.StorageUnavailable("log_recommendation", m.err)
	}
	r := *rec
	r.ID = m.id()
	r.Verdict = models.VerdictPending
	m.recs = append(m.recs, r)
	return r.ID, nil
}

func (m *memArchive) UpdateVerdict(_ context.Context, id int64, actual float64, v models.Verdict, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return errs.StorageUnavailable("update_verdict", m.err)
	}
	for i := range m.recs {
		r := &m.recs[i]
		if r.ID != id {
			continue
		}
		if r.Verdict != models.VerdictPending {
			return errs.AlreadyGraded(id, string(r.Verdict))
		}
		r.Verdict = v
		r.ActualPriceChange = &actual
		r.GradedAt = &at
		return nil
	}
	return errs.NotFound("update_verdict", id)
}

func (m *memArchive) RecommendationsBySymbolSince(_ context.Context, symbol string, since time.Time, limit int) ([]models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Recommendation
	for _, r := range m.recs {
		if r.Symbol == symbol && !r.IssuedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArchive) PendingDue(_ context.Context, tf models.Timeframe, cutoff time.Time, afterID int64, limit int) ([]models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, errs.StorageUnavailable("pending_due", m.err)
	}
	m.dueQueries++
	var out []models.Recommendation
	for _, r := range m.recs {
		if r.Verdict == models.VerdictPending && r.PredictedPriceChange != nil &&
			r.PredictionTimeframe == tf && !r.IssuedAt.After(cutoff) && r.ID > afterID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArchive) AccuracyCounts(_ context.Context, f models.AccuracyFilter) (models.AccuracyCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c models.AccuracyCounts
	for _, r := range m.recs {
		if (f.Symbol != "" && r.Symbol != f.Symbol) || (f.Timeframe != "" && r.PredictionTimeframe != f.Timeframe) {
			continue
		}
		c.Total++
		switch r.Verdict {
		case models.VerdictYes:
			c.Accurate++
		case models.VerdictNo:
			c.Inaccurate++
		default:
			c.Pending++
		}
	}
	return c, nil
}

func (m *memArchive) Health(context.Context) error { return nil }

func (m *memArchive) Close() error { return nil }

// fakeSource serves fixed quotes and a fixed basket.
type fakeSource struct {
	prices    map[string]float64
	basket    models.Basket
	pricesErr error
	basketErr error
	calls     int
}

func (s *fakeSource) FetchPrices(_ context.Context, symbols []string) ([]models.PricePoint, error) {
	s.calls++
	if s.pricesErr != nil {
		return nil, s.pricesErr
	}
	var out []models.PricePoint
	for _, sym := range symbols {
		if p, ok := s.prices[sym]; ok {
			out = append(out, models.PricePoint{Symbol: sym, Price: p})
		}
	}
	return out, nil
}

func (s *fakeSource) FetchBasket(context.Context) (models.Basket, error) {
	if s.basketErr != nil {
		return models.Basket{}, s.basketErr
	}
	return s.basket, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	batches  []models.PriceBatch
	recs     []models.Recommendation
	verdicts []models.VerdictEvent
	err      error
}

func (p *recordingPublisher) PublishPrices(_ context.Context, b models.PriceBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, b)
	return nil
}

func (p *recordingPublisher) PublishRecommendation(_ context.Context, r models.Recommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, r)
	return nil
}

func (p *recordingPublisher) PublishVerdict(_ context.Context, ev models.VerdictEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.verdicts = append(p.verdicts, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func basketFor(btc, eth, usdt float64) models.Basket {
	return models.Basket{
		Quotes: map[string]models.MarketQuote{
			"BTC":  {Symbol: "BTC", Price: 64000, MarketCap: btc, PercentChange24h: 1},
			"ETH":  {Symbol: "ETH", Price: 3200, MarketCap: eth, PercentChange24h: 3},
			"USDT": {Symbol: "USDT", Price: 1, MarketCap: usdt},
			"SOL":  {Symbol: "SOL", Price: 150, MarketCap: 100 - btc - eth - usdt, PercentChange24h: 4},
		},
		TotalMarketCap: 100,
		UniverseSize:   4,
	}
}

func f64(v float64) *float64 { return &v }
