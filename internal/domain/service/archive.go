package service

import (
	"context"
	"time"

	"CryptoArchive/internal/domain/models"
)

// Ingestor accepts snapshots and recommendations from adapters.
type Ingestor interface {
	LogPrices(ctx context.Context, batch models.PriceBatch) (int, error)
	LogRecommendation(ctx context.Context, rec models.Recommendation) (int64, error)
}

// HistoryReader serves the read boundary consumed by the dashboard.
type HistoryReader interface {
	HistoricalPrices(ctx context.Context, symbol string, days int) ([]models.PriceSnapshot, error)
	HistoricalRecommendations(ctx context.Context, symbol string, days int) ([]models.Recommendation, error)
	PredictionAccuracy(ctx context.Context, f models.AccuracyFilter) (models.AccuracyStats, error)
	AllLatestPrices(ctx context.Context) ([]models.PriceSnapshot, error)
}

// Grader applies verdict transitions.
type Grader interface {
	GradeDue(ctx context.Context, now time.Time) (models.GradeReport, error)
	ApplyVerdict(ctx context.Context, id int64, actualPriceChange float64, verdict models.Verdict) error
}

// MarketReader computes derived market signals from the live adapter.
type MarketReader interface {
	Dominance(ctx context.Context) (models.DominanceSnapshot, error)
	Overview(ctx context.Context) (models.MarketOverview, error)
}
