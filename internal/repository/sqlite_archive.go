package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	domrepo "CryptoArchive/internal/domain/repository"
	applogger "CryptoArchive/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Times are stored as UnixNano integers so range filters and ordering compare numbers,
// not driver-specific text encodings.
type priceLogRow struct {
	ID                 int64   `gorm:"primaryKey;autoIncrement"`
	Symbol             string  `gorm:"not null;index:idx_price_symbol_captured,priority:1"`
	Price              float64 `gorm:"not null"`
	PriceChange24h     *float64
	Volume24h          *float64
	MarketCap          *float64
	BTCDominance       *float64 `gorm:"column:btc_dominance"`
	Total3MarketCap    *float64 `gorm:"column:total3_market_cap"`
	AltcoinSeasonIndex *int
	CapturedAt         int64 `gorm:"not null;index:idx_price_symbol_captured,priority:2"`
	CreatedAt          int64 `gorm:"autoCreateTime:false"`
}

func (priceLogRow) TableName() string { return "daily_price_logs" }

type recommendationRow struct {
	ID                   int64  `gorm:"primaryKey;autoIncrement"`
	Symbol               string `gorm:"not null;index:idx_rec_symbol_issued,priority:1"`
	Action               string `gorm:"not null"`
	Conviction           string `gorm:"not null"`
	Allocation           *float64
	EntryZoneMin         *float64
	EntryZoneMax         *float64
	StopLoss             *float64
	TakeProfit1          *float64 `gorm:"column:take_profit_1"`
	TakeProfit2          *float64 `gorm:"column:take_profit_2"`
	TakeProfit3          *float64 `gorm:"column:take_profit_3"`
	PredictedPriceChange *float64
	PredictionTimeframe  *string
	Reasoning            *string
	TechnicalSignals     string `gorm:"not null;default:'[]'"`
	ActualPriceChange    *float64
	PredictionAccurate   string `gorm:"not null;default:'PENDING';index"`
	IssuedAt             int64  `gorm:"not null;index:idx_rec_symbol_issued,priority:2"`
	GradedAt             *int64
	CreatedAt            int64 `gorm:"autoCreateTime:false"`
}

func (recommendationRow) TableName() string { return "daily_recommendations" }

// SQLiteArchive is the embedded single-node backend.
type SQLiteArchive struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
	l       *applogger.Logger
}

var (
	_ domrepo.PriceArchive          = (*SQLiteArchive)(nil)
	_ domrepo.RecommendationArchive = (*SQLiteArchive)(nil)
)

func NewSQLiteArchive(db *gorm.DB, timeout time.Duration, l *applogger.Logger) *SQLiteArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLiteArchive{db: db, timeout: timeout, now: time.Now, l: l}
}

// InitSchema migrates both tables.
func (s *SQLiteArchive) InitSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&priceLogRow{}, &recommendationRow{}); err != nil {
		return errs.StorageUnavailable("init_schema", err)
	}
	return nil
}

func (s *SQLiteArchive) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return s.db.WithContext(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *SQLiteArchive) LogPrices(ctx context.Context, capturedAt time.Time, points []models.PricePoint, mc models.MarketContext) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	created := s.now().UnixNano()
	rows := make([]priceLogRow, len(points))
	for i, p := range points {
		rows[i] = priceLogRow{
			Symbol:             p.Symbol,
			Price:              p.Price,
			PriceChange24h:     p.PriceChange24h,
			Volume24h:          p.Volume24h,
			MarketCap:          p.MarketCap,
			BTCDominance:       mc.BTCDominance,
			Total3MarketCap:    mc.Total3MarketCap,
			AltcoinSeasonIndex: mc.AltcoinSeasonIndex,
			CapturedAt:         capturedAt.UnixNano(),
			CreatedAt:          created,
		}
	}
	res := db.Create(&rows)
	if res.Error != nil {
		s.l.Error("sqlite log_prices failed", applogger.Int("rows", len(points)), applogger.Error(res.Error))
		return 0, errs.StorageUnavailable("log_prices", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *SQLiteArchive) PricesBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	q := db.Where("symbol = ? AND captured_at >= ?", symbol, since.UnixNano()).
		Order("captured_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []priceLogRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.StorageUnavailable("prices_by_symbol", err)
	}
	return toSnapshots(rows), nil
}

func (s *SQLiteArchive) LatestPerSymbol(ctx context.Context) ([]models.PriceSnapshot, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var rows []priceLogRow
	err := db.Raw(`SELECT id, symbol, price, price_change24h, volume24h, market_cap, btc_dominance,
			total3_market_cap, altcoin_season_index, captured_at, created_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY captured_at DESC, id DESC) AS rn
			FROM daily_price_logs
		) WHERE rn = 1 ORDER BY symbol`).Scan(&rows).Error
	if err != nil {
		return nil, errs.StorageUnavailable("latest_per_symbol", err)
	}
	return toSnapshots(rows), nil
}

func (s *SQLiteArchive) NearestPrice(ctx context.Context, symbol string, at time.Time, tolerance time.Duration) (*models.PriceSnapshot, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	target := at.UnixNano()
	var row priceLogRow
	err := db.Where("symbol = ? AND captured_at BETWEEN ? AND ?", symbol, at.Add(-tolerance).UnixNano(), at.Add(tolerance).UnixNano()).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "ABS(captured_at - ?) ASC, id DESC",
			Vars:               []interface{}{target},
			WithoutParentheses: true,
		}}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.StorageUnavailable("nearest_price", err)
	}
	snap := row.snapshot()
	return &snap, nil
}

func (s *SQLiteArchive) LogRecommendation(ctx context.Context, rec *models.Recommendation) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	signals, err := json.Marshal(rec.TechnicalSignals)
	if err != nil {
		return 0, errs.Validation("log_recommendation", "technicalSignals", err.Error())
	}
	row := recommendationRow{
		Symbol:               rec.Symbol,
		Action:               string(rec.Action),
		Conviction:           string(rec.Conviction),
		Allocation:           rec.Allocation,
		EntryZoneMin:         rec.EntryZoneMin,
		EntryZoneMax:         rec.EntryZoneMax,
		StopLoss:             rec.StopLoss,
		TakeProfit1:          rec.TakeProfit1,
		TakeProfit2:          rec.TakeProfit2,
		TakeProfit3:          rec.TakeProfit3,
		PredictedPriceChange: rec.PredictedPriceChange,
		PredictionTimeframe:  nullString(string(rec.PredictionTimeframe)),
		Reasoning:            nullString(rec.Reasoning),
		TechnicalSignals:     string(signals),
		PredictionAccurate:   string(models.VerdictPending),
		IssuedAt:             rec.IssuedAt.UnixNano(),
		CreatedAt:            s.now().UnixNano(),
	}
	if err := db.Create(&row).Error; err != nil {
		s.l.Error("sqlite log_recommendation failed", applogger.String("symbol", rec.Symbol), applogger.Error(err))
		return 0, errs.StorageUnavailable("log_recommendation", err)
	}
	return row.ID, nil
}

func (s *SQLiteArchive) UpdateVerdict(ctx context.Context, id int64, actual float64, verdict models.Verdict, gradedAt time.Time) error {
	if !verdict.IsTerminal() {
		return errs.Validation("update_verdict", "predictionAccurate", "verdict must be YES or NO")
	}
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Model(&recommendationRow{}).
		Where("id = ? AND prediction_accurate = ?", id, string(models.VerdictPending)).
		Updates(map[string]interface{}{
			"actual_price_change": actual,
			"prediction_accurate": string(verdict),
			"graded_at":           gradedAt.UnixNano(),
		})
	if res.Error != nil {
		return errs.StorageUnavailable("update_verdict", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var row recommendationRow
	err := db.Select("prediction_accurate").Where("id = ?", id).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound("update_verdict", id)
	case err != nil:
		return errs.StorageUnavailable("update_verdict", err)
	default:
		return errs.AlreadyGraded(id, row.PredictionAccurate)
	}
}

func (s *SQLiteArchive) RecommendationsBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.Recommendation, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	q := db.Where("symbol = ? AND issued_at >= ?", symbol, since.UnixNano()).
		Order("issued_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []recommendationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.StorageUnavailable("recommendations_by_symbol", err)
	}
	return toRecommendations(rows), nil
}

func (s *SQLiteArchive) PendingDue(ctx context.Context, tf models.Timeframe, cutoff time.Time, afterID int64, limit int) ([]models.Recommendation, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	q := db.Where("prediction_accurate = ? AND predicted_price_change IS NOT NULL", string(models.VerdictPending)).
		Where("prediction_timeframe = ? AND issued_at <= ? AND id > ?", string(tf), cutoff.UnixNano(), afterID).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []recommendationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.StorageUnavailable("pending_due", err)
	}
	return toRecommendations(rows), nil
}

func (s *SQLiteArchive) AccuracyCounts(ctx context.Context, f models.AccuracyFilter) (models.AccuracyCounts, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var out struct {
		Total      int64
		Accurate   int64
		Inaccurate int64
		Pending    int64
	}
	q := db.Model(&recommendationRow{}).Select(`COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN prediction_accurate = 'YES' THEN 1 ELSE 0 END), 0) AS accurate,
		COALESCE(SUM(CASE WHEN prediction_accurate = 'NO' THEN 1 ELSE 0 END), 0) AS inaccurate,
		COALESCE(SUM(CASE WHEN prediction_accurate = 'PENDING' THEN 1 ELSE 0 END), 0) AS pending`)
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if f.Timeframe != "" {
		q = q.Where("prediction_timeframe = ?", string(f.Timeframe))
	}
	if err := q.Scan(&out).Error; err != nil {
		return models.AccuracyCounts{}, errs.StorageUnavailable("accuracy_counts", err)
	}
	return models.AccuracyCounts{
		Total:      out.Total,
		Accurate:   out.Accurate,
		Inaccurate: out.Inaccurate,
		Pending:    out.Pending,
	}, nil
}

func (s *SQLiteArchive) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteArchive) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r priceLogRow) snapshot() models.PriceSnapshot {
	return models.PriceSnapshot{
		ID:                 r.ID,
		Symbol:             r.Symbol,
		Price:              r.Price,
		PriceChange24h:     r.PriceChange24h,
		Volume24h:          r.Volume24h,
		MarketCap:          r.MarketCap,
		BTCDominance:       r.BTCDominance,
		Total3MarketCap:    r.Total3MarketCap,
		AltcoinSeasonIndex: r.AltcoinSeasonIndex,
		CapturedAt:         time.Unix(0, r.CapturedAt).UTC(),
		CreatedAt:          time.Unix(0, r.CreatedAt).UTC(),
	}
}

func toSnapshots(rows []priceLogRow) []models.PriceSnapshot {
	out := make([]models.PriceSnapshot, len(rows))
	for i, r := range rows {
		out[i] = r.snapshot()
	}
	return out
}

func toRecommendations(rows []recommendationRow) []models.Recommendation {
	out := make([]models.Recommendation, len(rows))
	for i, r := range rows {
		rec := models.Recommendation{
			ID:                   r.ID,
			Symbol:               r.Symbol,
			Action:               models.Action(r.Action),
			Conviction:           models.Conviction(r.Conviction),
			Allocation:           r.Allocation,
			EntryZoneMin:         r.EntryZoneMin,
			EntryZoneMax:         r.EntryZoneMax,
			StopLoss:             r.StopLoss,
			TakeProfit1:          r.TakeProfit1,
			TakeProfit2:          r.TakeProfit2,
			TakeProfit3:          r.TakeProfit3,
			PredictedPriceChange: r.PredictedPriceChange,
			TechnicalSignals:     decodeSignals(r.TechnicalSignals),
			ActualPriceChange:    r.ActualPriceChange,
			Verdict:              models.Verdict(r.PredictionAccurate),
			IssuedAt:             time.Unix(0, r.IssuedAt).UTC(),
			CreatedAt:            time.Unix(0, r.CreatedAt).UTC(),
		}
		if r.PredictionTimeframe != nil {
			rec.PredictionTimeframe = models.Timeframe(*r.PredictionTimeframe)
		}
		if r.Reasoning != nil {
			rec.Reasoning = *r.Reasoning
		}
		if r.GradedAt != nil {
			t := time.Unix(0, *r.GradedAt).UTC()
			rec.GradedAt = &t
		}
		out[i] = rec
	}
	return out
}
