package usecase

import (
	"context"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	applogger "CryptoArchive/pkg/logger"
)

// QueuedIngestor validates payloads and forwards them to the bus instead of the store.
// The consumer side writes them through an Ingestor. Recommendation ids are not known
// until then, so LogRecommendation returns 0.
type QueuedIngestor struct {
	pub     drepo.Publisher
	metrics drepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

var _ dsvc.Ingestor = (*QueuedIngestor)(nil)

func NewQueuedIngestor(pub drepo.Publisher, m drepo.Metrics, l *applogger.Logger) *QueuedIngestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &QueuedIngestor{pub: pub, metrics: m, now: time.Now, l: l}
}

// Queued reports that writes are asynchronous.
func (q *QueuedIngestor) Queued() bool { return true }

func (q *QueuedIngestor) LogPrices(ctx context.Context, batch models.PriceBatch) (int, error) {
	if err := ValidatePriceBatch(&batch); err != nil {
		q.metrics.RecordError(string(errs.KindValidation))
		return 0, err
	}
	// Stamp here so consumer lag does not shift the capture time.
	if batch.CapturedAt.IsZero() {
		batch.CapturedAt = q.now().UTC()
	}
	if err := q.pub.PublishPrices(ctx, batch); err != nil {
		q.metrics.RecordError("publish_prices")
		q.l.Error("publish prices failed", applogger.Int("count", len(batch.Prices)), applogger.Error(err))
		return 0, errs.StorageUnavailable(opLogPrices, err)
	}
	return len(batch.Prices), nil
}

func (q *QueuedIngestor) LogRecommendation(ctx context.Context, rec models.Recommendation) (int64, error) {
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		q.metrics.RecordError(string(errs.KindValidation))
		return 0, err
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = q.now().UTC()
	}
	if err := q.pub.PublishRecommendation(ctx, rec); err != nil {
		q.metrics.RecordError("publish_recommendation")
		q.l.Error("publish recommendation failed", applogger.String("symbol", rec.Symbol), applogger.Error(err))
		return 0, errs.StorageUnavailable(opLogRecommendation, err)
	}
	return 0, nil
}
