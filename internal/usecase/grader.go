package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	dsvc "CryptoArchive/internal/domain/service"
	"CryptoArchive/internal/services/grading"
	"CryptoArchive/pkg/cache"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/util"

	"github.com/google/uuid"
)

// GraderConfig tunes a grading run.
type GraderConfig struct {
	BatchSize int
	// IssuePriceTolerance is how far from the issue time the issue-price snapshot may be.
	IssuePriceTolerance time.Duration
	// QuoteFreshness is how old an archived snapshot may be to stand in for a live quote.
	QuoteFreshness time.Duration
}

// Grader transitions due PENDING recommendations to YES or NO.
type Grader struct {
	recs    drepo.RecommendationArchive
	prices  drepo.PriceArchive
	source  drepo.PriceSource
	pub     drepo.Publisher
	cache   cache.Service
	metrics drepo.Metrics
	cfg     GraderConfig
	newID   func() string
	now     func() time.Time
	l       *applogger.Logger
}

var _ dsvc.Grader = (*Grader)(nil)

// NewGrader creates a grader. source, pub and c may be nil; without a source the
// realized price comes from the archive only. Verdict writes drop the history reads
// cached in c.
func NewGrader(recs drepo.RecommendationArchive, prices drepo.PriceArchive, source drepo.PriceSource, pub drepo.Publisher, c cache.Service, m drepo.Metrics, cfg GraderConfig, l *applogger.Logger) *Grader {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Grader{
		recs:    recs,
		prices:  prices,
		source:  source,
		pub:     pub,
		cache:   c,
		metrics: m,
		cfg:     cfg,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
		l:       l,
	}
}

// GradeDue grades every PENDING recommendation whose horizon has elapsed at now.
// Due rows are paged per timeframe by id, so rows that stay PENDING never hide
// younger ones. Rows are graded independently: a missing price defers that row only,
// and an already-graded row is reported and skipped. The returned error is set only
// when a page of due rows could not be loaded; verdicts stored before that are kept.
func (g *Grader) GradeDue(ctx context.Context, now time.Time) (models.GradeReport, error) {
	start := time.Now()
	report := models.GradeReport{RunID: g.newID(), Outcomes: []models.GradeOutcome{}}
	l := g.l.With(applogger.String("run_id", report.RunID))

	var loadErr error
	var events []models.VerdictEvent
	quotes := make(map[string]float64)
	looked := make(map[string]bool)
	for _, tf := range models.Timeframes() {
		horizon, _ := tf.Horizon()
		cutoff := now.Add(-horizon)
		var after int64
		for loadErr == nil {
			page, err := g.recs.PendingDue(ctx, tf, cutoff, after, g.cfg.BatchSize)
			if err != nil {
				g.metrics.RecordError(errorLabel(err))
				l.Error("load due recommendations failed",
					applogger.String("timeframe", string(tf)),
					applogger.Int64("after_id", after),
					applogger.Error(err),
				)
				loadErr = err
				break
			}
			if len(page) == 0 {
				break
			}
			report.Due += len(page)
			g.realizedPrices(ctx, now, page, quotes, looked)
			events = append(events, g.gradePage(ctx, l, page, quotes, now, &report)...)

			after = page[len(page)-1].ID
			if len(page) < g.cfg.BatchSize {
				break
			}
		}
	}

	for i := range events {
		events[i].RunID = report.RunID
		g.metrics.RecordVerdict(string(events[i].Verdict), string(events[i].Timeframe))
	}
	if report.Graded > 0 {
		invalidateHistory(ctx, g.cache, l)
	}
	g.publish(ctx, l, events)

	if loadErr != nil {
		return report, loadErr
	}
	if report.Due == 0 {
		l.Info("grading run found nothing due")
		return report, nil
	}
	g.metrics.RecordLatency("grade_due", time.Since(start).Seconds())
	l.Info("grading run complete",
		applogger.Int("due", report.Due),
		applogger.Int("graded", report.Graded),
		applogger.Int("deferred", report.Deferred),
		applogger.Int("skipped", report.Skipped),
		applogger.Int("failed", report.Failed),
	)
	return report, nil
}

func (g *Grader) gradePage(ctx context.Context, l *applogger.Logger, page []models.Recommendation, quotes map[string]float64, now time.Time, report *models.GradeReport) []models.VerdictEvent {
	events := make([]models.VerdictEvent, 0, len(page))
	for _, rec := range page {
		out, ev, err := g.gradeOne(ctx, rec, quotes, now)
		report.Outcomes = append(report.Outcomes, out)
		switch {
		case err == nil:
			report.Graded++
			events = append(events, ev)
		case errs.Is(err, errs.KindRealizedPriceUnavailable):
			report.Deferred++
			l.Warn("grading deferred", applogger.Int64("id", rec.ID), applogger.Error(err))
		case errs.Is(err, errs.KindAlreadyGraded):
			report.Skipped++
			l.Info("recommendation already graded", applogger.Int64("id", rec.ID))
		default:
			report.Failed++
			g.metrics.RecordError(errorLabel(err))
			l.Error("grading failed", applogger.Int64("id", rec.ID), applogger.Error(err))
		}
	}
	return events
}

func (g *Grader) gradeOne(ctx context.Context, rec models.Recommendation, quotes map[string]float64, now time.Time) (models.GradeOutcome, models.VerdictEvent, error) {
	out := models.GradeOutcome{ID: rec.ID, Symbol: rec.Symbol, Verdict: models.VerdictPending}
	fail := func(err error) (models.GradeOutcome, models.VerdictEvent, error) {
		out.Error = err.Error()
		return out, models.VerdictEvent{}, err
	}

	issue, err := g.prices.NearestPrice(ctx, rec.Symbol, rec.IssuedAt, g.cfg.IssuePriceTolerance)
	if err != nil {
		return fail(err)
	}
	if issue == nil {
		return fail(errs.RealizedPriceUnavailable(rec.Symbol, errors.New("no snapshot near issue time")))
	}
	realized, ok := quotes[rec.Symbol]
	if !ok {
		return fail(errs.RealizedPriceUnavailable(rec.Symbol, errors.New("no current quote")))
	}
	actual, err := grading.ActualChange(issue.Price, realized)
	if err != nil {
		return fail(errs.RealizedPriceUnavailable(rec.Symbol, err))
	}

	verdict := grading.Judge(*rec.PredictedPriceChange, actual)
	if err := g.recs.UpdateVerdict(ctx, rec.ID, actual, verdict, now); err != nil {
		return fail(err)
	}
	out.Verdict = verdict
	out.ActualPriceChange = &actual
	return out, models.VerdictEvent{
		RecommendationID:  rec.ID,
		Symbol:            rec.Symbol,
		Timeframe:         rec.PredictionTimeframe,
		PredictedChange:   *rec.PredictedPriceChange,
		ActualPriceChange: actual,
		Verdict:           verdict,
		GradedAt:          now,
	}, nil
}

type batchVerdictPublisher interface {
	PublishVerdicts(ctx context.Context, evs []models.VerdictEvent) error
}

// publish forwards verdict events. Failures are logged; the verdicts are already stored.
func (g *Grader) publish(ctx context.Context, l *applogger.Logger, events []models.VerdictEvent) {
	if g.pub == nil || len(events) == 0 {
		return
	}
	if bp, ok := g.pub.(batchVerdictPublisher); ok {
		if err := bp.PublishVerdicts(ctx, events); err != nil {
			g.metrics.RecordError("publish_verdict")
			l.Warn("publish verdicts failed", applogger.Int("count", len(events)), applogger.Error(err))
		}
		return
	}
	for _, ev := range events {
		if err := g.pub.PublishVerdict(ctx, ev); err != nil {
			g.metrics.RecordError("publish_verdict")
			l.Warn("publish verdict failed", applogger.Int64("id", ev.RecommendationID), applogger.Error(err))
		}
	}
}

// realizedPrices adds current quotes for the page's symbols not looked up yet in this
// run, falling back to the newest archived snapshot within QuoteFreshness. Symbols with
// neither stay absent from quotes.
func (g *Grader) realizedPrices(ctx context.Context, now time.Time, page []models.Recommendation, quotes map[string]float64, looked map[string]bool) {
	symbols := make([]string, 0, len(page))
	for _, r := range page {
		if !looked[r.Symbol] {
			looked[r.Symbol] = true
			symbols = append(symbols, r.Symbol)
		}
	}
	if len(symbols) == 0 {
		return
	}
	sort.Strings(symbols)

	if g.source != nil {
		points, err := g.source.FetchPrices(ctx, symbols)
		if err != nil {
			g.l.Warn("live quotes unavailable, using archive", applogger.Error(err))
		}
		for _, p := range points {
			if p.Price > 0 && looked[p.Symbol] {
				quotes[p.Symbol] = p.Price
			}
		}
	}
	for _, s := range symbols {
		if _, ok := quotes[s]; ok {
			continue
		}
		snap, err := g.prices.NearestPrice(ctx, s, now, g.cfg.QuoteFreshness)
		if err != nil {
			g.l.Warn("archived quote lookup failed", applogger.String("symbol", s), applogger.Error(err))
			continue
		}
		if snap != nil && !snap.CapturedAt.After(now) {
			quotes[s] = snap.Price
		}
	}
}

// ApplyVerdict records a verdict decided outside the grading run. Only PENDING rows move.
func (g *Grader) ApplyVerdict(ctx context.Context, id int64, actualPriceChange float64, verdict models.Verdict) error {
	if id <= 0 {
		return errs.Validation("apply_verdict", "id", "id must be positive")
	}
	if !verdict.IsTerminal() {
		return errs.Validation("apply_verdict", "predictionAccurate", "verdict must be YES or NO")
	}
	actual := util.Round2(actualPriceChange)
	if err := g.recs.UpdateVerdict(ctx, id, actual, verdict, g.now().UTC()); err != nil {
		if errs.Is(err, errs.KindAlreadyGraded) {
			g.l.Info("manual verdict on graded recommendation", applogger.Int64("id", id))
		} else {
			g.metrics.RecordError(errorLabel(err))
		}
		return err
	}
	invalidateHistory(ctx, g.cache, g.l)
	g.metrics.RecordVerdict(string(verdict), "manual")
	g.l.Info("manual verdict applied",
		applogger.Int64("id", id),
		applogger.String("verdict", string(verdict)),
		applogger.Float64("actual_price_change", actual),
	)
	return nil
}
