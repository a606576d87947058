package usecase

import (
	"context"
	"errors"
	"testing"

	"CryptoArchive/internal/domain/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricesHandler(t *testing.T) {
	a := &memArchive{}
	h := NewPricesHandler("archive.prices", newIngestor(a, nil))
	assert.Equal(t, "archive.prices", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"prices":[{"symbol":"btc","price":64000}],"capturedAt":"2025-05-01T00:00:00Z"}`))
	require.NoError(t, err)
	require.Len(t, a.snaps, 1)
	assert.Equal(t, "BTC", a.snaps[0].Symbol)

	err = h.Handle(context.Background(), []byte(`{"prices":`))
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.False(t, Retryable(err))
}

func TestRecommendationsHandler(t *testing.T) {
	a := &memArchive{}
	h := NewRecommendationsHandler("archive.recommendations", newIngestor(a, nil))

	err := h.Handle(context.Background(), []byte(`{"symbol":"sol","action":"BUY","conviction":"STRONG","predictedPriceChange":20,"predictionTimeframe":"30D"}`))
	require.NoError(t, err)
	require.Len(t, a.recs, 1)
	assert.Equal(t, "SOL", a.recs[0].Symbol)
	assert.False(t, a.recs[0].IssuedAt.IsZero())

	err = h.Handle(context.Background(), []byte(`{"symbol":"sol","action":"SHORT"}`))
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(errs.Validation("op", "f", "bad")))
	assert.False(t, Retryable(errs.AlreadyGraded(1, "YES")))
	assert.False(t, Retryable(errs.NotFound("op", 1)))
	assert.True(t, Retryable(errs.StorageUnavailable("op", errors.New("down"))))
	assert.True(t, Retryable(errors.New("unknown")))
}
