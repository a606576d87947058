package metrics

import (
	"CryptoArchive/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsWritten *prometheus.CounterVec
	recsLogged       *prometheus.CounterVec
	verdicts         *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	dominance        *prometheus.GaugeVec
	altSeason        prometheus.Gauge
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		snapshotsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoarchive_snapshots_written_total",
				Help: "Price snapshots written to the archive",
			},
			[]string{"source"},
		),
		recsLogged: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoarchive_recommendations_logged_total",
				Help: "Recommendations logged by action",
			},
			[]string{"action"},
		),
		verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoarchive_verdicts_total",
				Help: "Verdicts recorded by outcome and timeframe",
			},
			[]string{"verdict", "timeframe"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptoarchive_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptoarchive_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptoarchive_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		dominance: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptoarchive_dominance_percent",
				Help: "Latest market cap dominance by segment",
			},
			[]string{"segment"},
		),
		altSeason: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptoarchive_altcoin_season",
				Help: "1 when the latest dominance snapshot signals altcoin season",
			},
		),
	}
}

func (r *Recorder) RecordSnapshotsWritten(source string, n int) {
	r.snapshotsWritten.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordRecommendationLogged(action string) {
	r.recsLogged.WithLabelValues(action).Inc()
}

func (r *Recorder) RecordVerdict(verdict, timeframe string) {
	r.verdicts.WithLabelValues(verdict, timeframe).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordDominance(d models.DominanceSnapshot) {
	r.dominance.WithLabelValues("btc").Set(d.BTCDominance)
	r.dominance.WithLabelValues("eth").Set(d.ETHDominance)
	r.dominance.WithLabelValues("others").Set(d.OthersDominance)
	r.dominance.WithLabelValues("stablecoin").Set(d.StablecoinDominance)
	if d.AltcoinSeason.IsAltSeason {
		r.altSeason.Set(1)
	} else {
		r.altSeason.Set(0)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSnapshotsWritten(string, int) {}
func (Nop) RecordRecommendationLogged(string) {}
func (Nop) RecordVerdict(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordDominance(models.DominanceSnapshot) {}
