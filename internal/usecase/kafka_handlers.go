package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	dsvc "CryptoArchive/internal/domain/service"
	pkgkafka "CryptoArchive/pkg/kafka"
)

// PricesHandler writes price batches consumed from Kafka.
type PricesHandler struct {
	topic  string
	ingest dsvc.Ingestor
}

func NewPricesHandler(topic string, ingest dsvc.Ingestor) *PricesHandler {
	return &PricesHandler{topic: topic, ingest: ingest}
}

func (h *PricesHandler) Topic() string { return h.topic }

func (h *PricesHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.PriceBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		return errs.Validation(opLogPrices, "payload", err.Error())
	}
	_, err := h.ingest.LogPrices(ctx, batch)
	return err
}

// RecommendationsHandler writes recommendations consumed from Kafka.
type RecommendationsHandler struct {
	topic  string
	ingest dsvc.Ingestor
}

func NewRecommendationsHandler(topic string, ingest dsvc.Ingestor) *RecommendationsHandler {
	return &RecommendationsHandler{topic: topic, ingest: ingest}
}

func (h *RecommendationsHandler) Topic() string { return h.topic }

func (h *RecommendationsHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.Recommendation
	if err := json.Unmarshal(b, &rec); err != nil {
		return errs.Validation(opLogRecommendation, "payload", err.Error())
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	_, err := h.ingest.LogRecommendation(ctx, rec)
	return err
}

// Retryable reports whether a consumer should retry err. Bad payloads and verdict
// conflicts fail the same way every time.
func Retryable(err error) bool {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindAlreadyGraded, errs.KindNotFound:
		return false
	}
	return true
}

var (
	_ pkgkafka.MessageHandler = (*PricesHandler)(nil)
	_ pkgkafka.MessageHandler = (*RecommendationsHandler)(nil)
)
