package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	domrepo "CryptoArchive/internal/domain/repository"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresSchema is idempotent; both tables are append-only apart from the verdict columns.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_price_logs (
		id                   BIGSERIAL PRIMARY KEY,
		symbol               TEXT NOT NULL,
		price                DOUBLE PRECISION NOT NULL CHECK (price > 0),
		price_change_24h     DOUBLE PRECISION,
		volume_24h           DOUBLE PRECISION,
		market_cap           DOUBLE PRECISION,
		btc_dominance        DOUBLE PRECISION,
		total3_market_cap    DOUBLE PRECISION,
		altcoin_season_index INTEGER,
		captured_at          TIMESTAMPTZ NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_logs_symbol_captured ON daily_price_logs (symbol, captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_recommendations (
		id                     BIGSERIAL PRIMARY KEY,
		symbol                 TEXT NOT NULL,
		action                 TEXT NOT NULL,
		conviction             TEXT NOT NULL,
		allocation             DOUBLE PRECISION,
		entry_zone_min         DOUBLE PRECISION,
		entry_zone_max         DOUBLE PRECISION,
		stop_loss              DOUBLE PRECISION,
		take_profit_1          DOUBLE PRECISION,
		take_profit_2          DOUBLE PRECISION,
		take_profit_3          DOUBLE PRECISION,
		predicted_price_change DOUBLE PRECISION,
		prediction_timeframe   TEXT,
		reasoning              TEXT,
		technical_signals      TEXT NOT NULL DEFAULT '[]',
		actual_price_change    DOUBLE PRECISION,
		prediction_accurate    TEXT NOT NULL DEFAULT 'PENDING',
		issued_at              TIMESTAMPTZ NOT NULL,
		graded_at              TIMESTAMPTZ,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_symbol_issued ON daily_recommendations (symbol, issued_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_due ON daily_recommendations (prediction_timeframe, id)
		WHERE prediction_accurate = 'PENDING' AND predicted_price_change IS NOT NULL`,
}

const (
	pgPriceCols = `id, symbol, price, price_change_24h, volume_24h, market_cap,
		btc_dominance, total3_market_cap, altcoin_season_index, captured_at, created_at`
	pgRecCols = `id, symbol, action, conviction, allocation, entry_zone_min, entry_zone_max,
		stop_loss, take_profit_1, take_profit_2, take_profit_3, predicted_price_change,
		prediction_timeframe, reasoning, technical_signals, actual_price_change,
		prediction_accurate, issued_at, graded_at, created_at`
)

// PostgresArchive stores prices and recommendations in PostgreSQL.
type PostgresArchive struct {
	pool    postgres.DatabasePool
	timeout time.Duration
	l       *applogger.Logger
}

var (
	_ domrepo.PriceArchive          = (*PostgresArchive)(nil)
	_ domrepo.RecommendationArchive = (*PostgresArchive)(nil)
)

func NewPostgresArchive(pool postgres.DatabasePool, timeout time.Duration, l *applogger.Logger) *PostgresArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &PostgresArchive{pool: pool, timeout: timeout, l: l}
}

// InitSchema creates tables and indexes if they do not exist.
func (s *PostgresArchive) InitSchema(ctx context.Context) error {
	for _, stmt := range PostgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errs.StorageUnavailable("init_schema", err)
		}
	}
	return nil
}

func (s *PostgresArchive) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresArchive) LogPrices(ctx context.Context, capturedAt time.Time, points []models.PricePoint, mc models.MarketContext) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const perRow = 9
	values := make([]string, 0, len(points))
	args := make([]any, 0, len(points)*perRow)
	for i, p := range points {
		b := i * perRow
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			b+1, b+2, b+3, b+4, b+5, b+6, b+7, b+8, b+9))
		args = append(args,
			p.Symbol, p.Price, p.PriceChange24h, p.Volume24h, p.MarketCap,
			mc.BTCDominance, mc.Total3MarketCap, mc.AltcoinSeasonIndex, capturedAt,
		)
	}
	q := `INSERT INTO daily_price_logs (symbol, price, price_change_24h, volume_24h, market_cap,
		btc_dominance, total3_market_cap, altcoin_season_index, captured_at) VALUES ` + strings.Join(values, ", ")

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		s.l.Error("postgres log_prices failed", applogger.Int("rows", len(points)), applogger.Error(err))
		return 0, errs.StorageUnavailable("log_prices", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresArchive) PricesBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + pgPriceCols + ` FROM daily_price_logs
		WHERE symbol = $1 AND captured_at >= $2
		ORDER BY captured_at DESC, id DESC`
	args := []any{symbol, since}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryPrices(ctx, "prices_by_symbol", q, args...)
}

func (s *PostgresArchive) LatestPerSymbol(ctx context.Context) ([]models.PriceSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT DISTINCT ON (symbol) ` + pgPriceCols + ` FROM daily_price_logs
		ORDER BY symbol, captured_at DESC, id DESC`
	return s.queryPrices(ctx, "latest_per_symbol", q)
}

// NearestPrice returns nil without error when no snapshot falls inside the window.
func (s *PostgresArchive) NearestPrice(ctx context.Context, symbol string, at time.Time, tolerance time.Duration) (*models.PriceSnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + pgPriceCols + ` FROM daily_price_logs
		WHERE symbol = $1 AND captured_at BETWEEN $2 AND $3
		ORDER BY ABS(EXTRACT(EPOCH FROM (captured_at - $4::timestamptz))) ASC, id DESC
		LIMIT 1`
	snap, err := scanPrice(s.pool.QueryRow(ctx, q, symbol, at.Add(-tolerance), at.Add(tolerance), at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.StorageUnavailable("nearest_price", err)
	}
	return &snap, nil
}

func (s *PostgresArchive) queryPrices(ctx context.Context, op, q string, args ...any) ([]models.PriceSnapshot, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.StorageUnavailable(op, err)
	}
	defer rows.Close()

	out := make([]models.PriceSnapshot, 0)
	for rows.Next() {
		snap, err := scanPrice(rows)
		if err != nil {
			return nil, errs.StorageUnavailable(op, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.StorageUnavailable(op, err)
	}
	return out, nil
}

func scanPrice(row pgx.Row) (models.PriceSnapshot, error) {
	var (
		p                            models.PriceSnapshot
		chg, vol, mcap, btcD, total3 pgtype.Float8
		alt                          pgtype.Int4
	)
	if err := row.Scan(&p.ID, &p.Symbol, &p.Price, &chg, &vol, &mcap, &btcD, &total3, &alt, &p.CapturedAt, &p.CreatedAt); err != nil {
		return p, err
	}
	p.PriceChange24h = float8Ptr(chg)
	p.Volume24h = float8Ptr(vol)
	p.MarketCap = float8Ptr(mcap)
	p.BTCDominance = float8Ptr(btcD)
	p.Total3MarketCap = float8Ptr(total3)
	if alt.Valid {
		v := int(alt.Int32)
		p.AltcoinSeasonIndex = &v
	}
	return p, nil
}

func (s *PostgresArchive) LogRecommendation(ctx context.Context, rec *models.Recommendation) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	signals, err := json.Marshal(rec.TechnicalSignals)
	if err != nil {
		return 0, errs.Validation("log_recommendation", "technicalSignals", err.Error())
	}
	q := `INSERT INTO daily_recommendations (symbol, action, conviction, allocation, entry_zone_min,
		entry_zone_max, stop_loss, take_profit_1, take_profit_2, take_profit_3, predicted_price_change,
		prediction_timeframe, reasoning, technical_signals, prediction_accurate, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	var id int64
	err = s.pool.QueryRow(ctx, q,
		rec.Symbol, string(rec.Action), string(rec.Conviction), rec.Allocation, rec.EntryZoneMin,
		rec.EntryZoneMax, rec.StopLoss, rec.TakeProfit1, rec.TakeProfit2, rec.TakeProfit3,
		rec.PredictedPriceChange, nullString(string(rec.PredictionTimeframe)), nullString(rec.Reasoning),
		string(signals), string(models.VerdictPending), rec.IssuedAt,
	).Scan(&id)
	if err != nil {
		s.l.Error("postgres log_recommendation failed", applogger.String("symbol", rec.Symbol), applogger.Error(err))
		return 0, errs.StorageUnavailable("log_recommendation", err)
	}
	return id, nil
}

// UpdateVerdict only touches rows still PENDING; a miss is resolved into NotFound or AlreadyGraded.
func (s *PostgresArchive) UpdateVerdict(ctx context.Context, id int64, actual float64, verdict models.Verdict, gradedAt time.Time) error {
	if !verdict.IsTerminal() {
		return errs.Validation("update_verdict", "predictionAccurate", "verdict must be YES or NO")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE daily_recommendations
		SET actual_price_change = $2, prediction_accurate = $3, graded_at = $4
		WHERE id = $1 AND prediction_accurate = 'PENDING'`,
		id, actual, string(verdict), gradedAt)
	if err != nil {
		return errs.StorageUnavailable("update_verdict", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT prediction_accurate FROM daily_recommendations WHERE id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errs.NotFound("update_verdict", id)
	case err != nil:
		return errs.StorageUnavailable("update_verdict", err)
	default:
		return errs.AlreadyGraded(id, current)
	}
}

func (s *PostgresArchive) RecommendationsBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.Recommendation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + pgRecCols + ` FROM daily_recommendations
		WHERE symbol = $1 AND issued_at >= $2
		ORDER BY issued_at DESC, id DESC`
	args := []any{symbol, since}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryRecs(ctx, "recommendations_by_symbol", q, args...)
}

func (s *PostgresArchive) PendingDue(ctx context.Context, tf models.Timeframe, cutoff time.Time, afterID int64, limit int) ([]models.Recommendation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + pgRecCols + ` FROM daily_recommendations
		WHERE prediction_accurate = 'PENDING'
			AND predicted_price_change IS NOT NULL
			AND prediction_timeframe = $1
			AND issued_at <= $2
			AND id > $3
		ORDER BY id ASC`
	args := []any{string(tf), cutoff, afterID}
	if limit > 0 {
		q += ` LIMIT $4`
		args = append(args, limit)
	}
	return s.queryRecs(ctx, "pending_due", q, args...)
}

func (s *PostgresArchive) AccuracyCounts(ctx context.Context, f models.AccuracyFilter) (models.AccuracyCounts, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var c models.AccuracyCounts
	err := s.pool.QueryRow(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE prediction_accurate = 'YES'),
			COUNT(*) FILTER (WHERE prediction_accurate = 'NO'),
			COUNT(*) FILTER (WHERE prediction_accurate = 'PENDING')
		FROM daily_recommendations
		WHERE ($1 = '' OR symbol = $1) AND ($2 = '' OR prediction_timeframe = $2)`,
		f.Symbol, string(f.Timeframe),
	).Scan(&c.Total, &c.Accurate, &c.Inaccurate, &c.Pending)
	if err != nil {
		return c, errs.StorageUnavailable("accuracy_counts", err)
	}
	return c, nil
}

func (s *PostgresArchive) queryRecs(ctx context.Context, op, q string, args ...any) ([]models.Recommendation, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.StorageUnavailable(op, err)
	}
	defer rows.Close()

	out := make([]models.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, errs.StorageUnavailable(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.StorageUnavailable(op, err)
	}
	return out, nil
}

func scanRecommendation(row pgx.Row) (models.Recommendation, error) {
	var (
		r                                models.Recommendation
		action, conviction, verdict      string
		signals                          string
		alloc, ezMin, ezMax, stop        pgtype.Float8
		tp1, tp2, tp3, predicted, actual pgtype.Float8
		timeframe, reasoning             pgtype.Text
		gradedAt                         pgtype.Timestamptz
	)
	err := row.Scan(&r.ID, &r.Symbol, &action, &conviction, &alloc, &ezMin, &ezMax,
		&stop, &tp1, &tp2, &tp3, &predicted,
		&timeframe, &reasoning, &signals, &actual,
		&verdict, &r.IssuedAt, &gradedAt, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.Action = models.Action(action)
	r.Conviction = models.Conviction(conviction)
	r.Verdict = models.Verdict(verdict)
	r.Allocation = float8Ptr(alloc)
	r.EntryZoneMin = float8Ptr(ezMin)
	r.EntryZoneMax = float8Ptr(ezMax)
	r.StopLoss = float8Ptr(stop)
	r.TakeProfit1 = float8Ptr(tp1)
	r.TakeProfit2 = float8Ptr(tp2)
	r.TakeProfit3 = float8Ptr(tp3)
	r.PredictedPriceChange = float8Ptr(predicted)
	r.ActualPriceChange = float8Ptr(actual)
	if timeframe.Valid {
		r.PredictionTimeframe = models.Timeframe(timeframe.String)
	}
	if reasoning.Valid {
		r.Reasoning = reasoning.String
	}
	if gradedAt.Valid {
		t := gradedAt.Time
		r.GradedAt = &t
	}
	r.TechnicalSignals = decodeSignals(signals)
	return r, nil
}

func (s *PostgresArchive) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresArchive) Close() error {
	s.pool.Close()
	return nil
}

func float8Ptr(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func decodeSignals(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
