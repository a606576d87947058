package repository

import (
	"context"
	"time"

	"CryptoArchive/internal/domain/models"
)

// PriceArchive is the append-only price snapshot store.
type PriceArchive interface {
	// LogPrices writes one snapshot per point, all stamped with capturedAt and mc.
	// The batch is written in one statement; there are no partial writes.
	LogPrices(ctx context.Context, capturedAt time.Time, points []models.PricePoint, mc models.MarketContext) (int, error)
	// PricesBySymbolSince returns rows captured at or after since, newest first, at most limit rows (0 = unbounded).
	PricesBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error)
	// LatestPerSymbol returns the most recent snapshot of every known symbol.
	LatestPerSymbol(ctx context.Context) ([]models.PriceSnapshot, error)
	// NearestPrice returns the snapshot of symbol closest to at within tolerance.
	NearestPrice(ctx context.Context, symbol string, at time.Time, tolerance time.Duration) (*models.PriceSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// RecommendationArchive stores recommendations and their single verdict transition.
type RecommendationArchive interface {
	LogRecommendation(ctx context.Context, rec *models.Recommendation) (int64, error)
	// UpdateVerdict is a compare-and-set against PENDING. A terminal row yields AlreadyGraded.
	UpdateVerdict(ctx context.Context, id int64, actualPriceChange float64, verdict models.Verdict, gradedAt time.Time) error
	RecommendationsBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.Recommendation, error)
	// PendingDue returns PENDING rows of timeframe tf that carry a predicted change and
	// were issued at or before cutoff, with id greater than afterID, in id order.
	PendingDue(ctx context.Context, tf models.Timeframe, cutoff time.Time, afterID int64, limit int) ([]models.Recommendation, error)
	AccuracyCounts(ctx context.Context, f models.AccuracyFilter) (models.AccuracyCounts, error)
	Health(ctx context.Context) error
	Close() error
}

// PriceSource is the upstream adapter boundary. The archive never parses exchange payloads.
type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) ([]models.PricePoint, error)
	FetchBasket(ctx context.Context) (models.Basket, error)
}

// Publisher forwards ingestion payloads and verdict events to the message bus.
type Publisher interface {
	PublishPrices(ctx context.Context, batch models.PriceBatch) error
	PublishRecommendation(ctx context.Context, rec models.Recommendation) error
	PublishVerdict(ctx context.Context, ev models.VerdictEvent) error
	Close() error
}

type Metrics interface {
	RecordSnapshotsWritten(source string, n int)
	RecordRecommendationLogged(action string)
	RecordVerdict(verdict, timeframe string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordDominance(d models.DominanceSnapshot)
}
