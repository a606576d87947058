package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	"CryptoArchive/internal/services/market"
	"CryptoArchive/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotJob(a *memArchive, src *fakeSource, targets []market.Target) *SnapshotJob {
	j := NewSnapshotJob(src, newIngestor(a, nil), []string{"BTC", "ETH"}, targets, metrics.Nop{}, nil)
	j.now = func() time.Time { return fixedNow }
	return j
}

func TestSnapshotCaptureWithContextAndTargets(t *testing.T) {
	a := &memArchive{}
	src := &fakeSource{
		prices: map[string]float64{"BTC": 64000, "ETH": 3200, "SOL": 150},
		basket: basketFor(50, 15, 5),
	}
	j := newSnapshotJob(a, src, []market.Target{{Symbol: "SOL", Price: 140, Allocation: 10}})

	report, err := j.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Prices)
	assert.Equal(t, 1, report.Recommendations)
	require.NotNil(t, report.Dominance)
	assert.InDelta(t, 50.0, report.Dominance.BTCDominance, 1e-9)

	require.Len(t, a.snaps, 3)
	for _, s := range a.snaps {
		require.NotNil(t, s.BTCDominance)
		assert.InDelta(t, 50.0, *s.BTCDominance, 1e-9)
		assert.True(t, s.CapturedAt.Equal(fixedNow))
	}

	require.Len(t, a.recs, 1)
	rec := a.recs[0]
	assert.Equal(t, "SOL", rec.Symbol)
	assert.Equal(t, models.ActionHold, rec.Action)
	assert.Equal(t, models.TF30D, rec.PredictionTimeframe)
	assert.True(t, rec.IssuedAt.Equal(fixedNow))
}

func TestSnapshotIncompleteBasketLogsWithoutContext(t *testing.T) {
	a := &memArchive{}
	b := basketFor(50, 15, 5)
	delete(b.Quotes, "ETH")
	src := &fakeSource{prices: map[string]float64{"BTC": 64000, "ETH": 3200}, basket: b}

	report, err := newSnapshotJob(a, src, nil).Capture(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Dominance)
	assert.Equal(t, 2, report.Prices)
	for _, s := range a.snaps {
		assert.Nil(t, s.BTCDominance)
		assert.Nil(t, s.AltcoinSeasonIndex)
	}
}

func TestSnapshotUpstreamDown(t *testing.T) {
	a := &memArchive{}
	src := &fakeSource{pricesErr: errs.UpstreamUnavailable("listing", errors.New("502"))}

	_, err := newSnapshotJob(a, src, nil).Capture(context.Background())
	assert.True(t, errs.Is(err, errs.KindUpstreamUnavailable))
	assert.Empty(t, a.snaps)
}

func TestSnapshotStorageDownStopsRun(t *testing.T) {
	a := &memArchive{err: errors.New("disk full")}
	src := &fakeSource{prices: map[string]float64{"BTC": 64000}, basket: basketFor(50, 15, 5)}

	err := newSnapshotJob(a, src, nil).Run(context.Background())
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
}

type stubGrader struct {
	at time.Time
}

func (g *stubGrader) GradeDue(_ context.Context, now time.Time) (models.GradeReport, error) {
	g.at = now
	return models.GradeReport{}, nil
}

func (g *stubGrader) ApplyVerdict(context.Context, int64, float64, models.Verdict) error { return nil }

func TestGradeJobUsesClock(t *testing.T) {
	g := &stubGrader{}
	j := NewGradeJob(g)
	j.now = func() time.Time { return fixedNow }

	require.NoError(t, j.Run(context.Background()))
	assert.Equal(t, "grade", j.Name())
	assert.True(t, g.at.Equal(fixedNow))
}
