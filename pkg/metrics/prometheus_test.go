package metrics

import (
	"testing"

	"CryptoArchive/internal/domain/models"
	"CryptoArchive/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var (
	_ repository.Metrics = (*Recorder)(nil)
	_ repository.Metrics = Nop{}
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordSnapshotsWritten("api", 3)
	r.RecordSnapshotsWritten("api", 2)
	r.RecordVerdict("YES", "30D")
	r.RecordDominance(models.DominanceSnapshot{
		BTCDominance:    42,
		OthersDominance: 46,
		AltcoinSeason:   models.AltcoinSeasonSignal{IsAltSeason: true},
	})

	assert.Equal(t, 5.0, testutil.ToFloat64(r.snapshotsWritten.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verdicts.WithLabelValues("YES", "30D")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.dominance.WithLabelValues("btc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.altSeason))
}
