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

	"github.com/google/uuid"
)

// SnapshotReport summarizes one daily capture.
type SnapshotReport struct {
	RunID           string                    `json:"runId"`
	CapturedAt      time.Time                 `json:"capturedAt"`
	Prices          int                       `json:"prices"`
	Recommendations int                       `json:"recommendations"`
	Failed          int                       `json:"failed"`
	Dominance       *models.DominanceSnapshot `json:"dominance,omitempty"`
	Sentiment       models.MarketSentiment    `json:"sentiment"`
}

// SnapshotJob captures the daily listing into the archive: prices with their shared
// market context, then the recommendation set derived from the configured targets.
type SnapshotJob struct {
	source  drepo.PriceSource
	ingest  dsvc.Ingestor
	symbols []string
	targets []market.Target
	metrics drepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

func NewSnapshotJob(source drepo.PriceSource, ingest dsvc.Ingestor, symbols []string, targets []market.Target, m drepo.Metrics, l *applogger.Logger) *SnapshotJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotJob{source: source, ingest: ingest, symbols: symbols, targets: targets, metrics: m, now: time.Now, l: l}
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run(ctx context.Context) error {
	_, err := j.Capture(ctx)
	return err
}

// Capture runs one snapshot. An incomplete dominance basket does not stop the capture;
// the snapshots are then written without market context rather than with invented values.
func (j *SnapshotJob) Capture(ctx context.Context) (SnapshotReport, error) {
	start := time.Now()
	report := SnapshotReport{RunID: uuid.NewString(), CapturedAt: j.now().UTC()}
	l := j.l.With(applogger.String("run_id", report.RunID), applogger.String("job", j.Name()))

	symbols := append([]string(nil), j.symbols...)
	for _, t := range j.targets {
		if !contains(symbols, t.Symbol) {
			symbols = append(symbols, t.Symbol)
		}
	}
	points, err := j.source.FetchPrices(ctx, symbols)
	if err != nil {
		l.Error("fetch prices failed", applogger.Error(err))
		return report, err
	}

	batch := models.PriceBatch{Prices: points, CapturedAt: report.CapturedAt}
	basket, err := j.source.FetchBasket(ctx)
	if err == nil {
		var d models.DominanceSnapshot
		d, err = market.ComputeDominance(basket, report.CapturedAt)
		if err == nil {
			report.Dominance = &d
			batch.MarketContext = market.MarketContextFor(basket, d)
			j.metrics.RecordDominance(d)
		}
		report.Sentiment = market.Sentiment(market.BasketChanges(basket))
	}
	if err != nil {
		j.metrics.RecordError(errorLabel(err))
		l.Warn("market context unavailable, logging prices without it", applogger.Error(err))
	}

	if len(points) > 0 {
		n, err := j.ingest.LogPrices(ctx, batch)
		if err != nil {
			l.Error("log prices failed", applogger.Error(err))
			return report, err
		}
		report.Prices = n
	}

	bySymbol := make(map[string]models.PricePoint, len(points))
	for _, p := range points {
		bySymbol[p.Symbol] = p
	}
	for _, rec := range market.RecommendFromTargets(j.targets, bySymbol) {
		rec.IssuedAt = report.CapturedAt
		if _, err := j.ingest.LogRecommendation(ctx, rec); err != nil {
			report.Failed++
			l.Error("log recommendation failed", applogger.String("symbol", rec.Symbol), applogger.Error(err))
			if errs.Is(err, errs.KindStorageUnavailable) {
				return report, err
			}
			continue
		}
		report.Recommendations++
	}

	j.metrics.RecordLatency("snapshot_job", time.Since(start).Seconds())
	l.Info("snapshot captured",
		applogger.Int("prices", report.Prices),
		applogger.Int("recommendations", report.Recommendations),
		applogger.Int("failed", report.Failed),
		applogger.String("sentiment", string(report.Sentiment.Label)),
	)
	return report, nil
}

// GradeJob adapts Grader to the scheduler.
type GradeJob struct {
	grader dsvc.Grader
	now    func() time.Time
}

func NewGradeJob(g dsvc.Grader) *GradeJob {
	return &GradeJob{grader: g, now: time.Now}
}

func (j *GradeJob) Name() string { return "grade" }

func (j *GradeJob) Run(ctx context.Context) error {
	_, err := j.grader.GradeDue(ctx, j.now().UTC())
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
