package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	domrepo "CryptoArchive/internal/domain/repository"
	pkgch "CryptoArchive/pkg/clickhouse"
	applogger "CryptoArchive/pkg/logger"
)

const chPriceTable = "daily_price_logs"

// ClickHouseSchema returns the DDL of the columnar price archive in database db.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			id                   Int64,
			symbol               LowCardinality(String),
			price                Float64,
			price_change_24h     Nullable(Float64),
			volume_24h           Nullable(Float64),
			market_cap           Nullable(Float64),
			btc_dominance        Nullable(Float64),
			total3_market_cap    Nullable(Float64),
			altcoin_season_index Nullable(Int32),
			captured_at          DateTime64(3, 'UTC'),
			created_at           DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(captured_at)
		ORDER BY (symbol, captured_at, id)`, db, chPriceTable),
	}
}

// ClickHousePrices stores price snapshots in ClickHouse. Recommendations stay in the
// relational store because verdict updates need a row-level compare-and-set.
type ClickHousePrices struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	l       *applogger.Logger
}

var _ domrepo.PriceArchive = (*ClickHousePrices)(nil)

func NewClickHousePrices(ch *pkgch.Client, timeout time.Duration, l *applogger.Logger) *ClickHousePrices {
	if l == nil {
		l = applogger.Nop()
	}
	table := chPriceTable
	if db := ch.Database(); db != "" {
		table = db + "." + chPriceTable
	}
	return &ClickHousePrices{db: ch.DB(), table: table, timeout: timeout, l: l}
}

func (s *ClickHousePrices) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// buildPriceInsert renders one multi-row INSERT. Row ids are derived from the capture
// instant and the row position, so a batch never collides with itself.
func buildPriceInsert(table string, capturedAt time.Time, points []models.PricePoint, mc models.MarketContext) (string, []interface{}) {
	values := make([]string, len(points))
	args := make([]interface{}, 0, len(points)*10)
	base := capturedAt.UnixMicro() * 1000
	for i, p := range points {
		values[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		var idx *int32
		if mc.AltcoinSeasonIndex != nil {
			v := int32(*mc.AltcoinSeasonIndex)
			idx = &v
		}
		args = append(args,
			base+int64(i),
			p.Symbol,
			p.Price,
			p.PriceChange24h,
			p.Volume24h,
			p.MarketCap,
			mc.BTCDominance,
			mc.Total3MarketCap,
			idx,
			capturedAt.UTC(),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, price, price_change_24h, volume_24h, market_cap,
		btc_dominance, total3_market_cap, altcoin_season_index, captured_at) VALUES %s`,
		table, strings.Join(values, ","))
	return q, args
}

func (s *ClickHousePrices) LogPrices(ctx context.Context, capturedAt time.Time, points []models.PricePoint, mc models.MarketContext) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	start := time.Now()
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	q, args := buildPriceInsert(s.table, capturedAt, points, mc)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse log_prices failed",
			applogger.String("table", s.table),
			applogger.Int("rows", len(points)),
			applogger.Error(err),
		)
		return 0, errs.StorageUnavailable("log_prices", err)
	}
	s.l.Debug("clickhouse log_prices ok",
		applogger.Int("rows", len(points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return len(points), nil
}

const chPriceColumns = `id, symbol, price, price_change_24h, volume_24h, market_cap,
	btc_dominance, total3_market_cap, altcoin_season_index, captured_at, created_at`

func (s *ClickHousePrices) PricesBySymbolSince(ctx context.Context, symbol string, since time.Time, limit int) ([]models.PriceSnapshot, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE symbol = ? AND captured_at >= ?
		ORDER BY captured_at DESC, id DESC`, chPriceColumns, s.table)
	args := []interface{}{symbol, since.UTC()}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, "prices_by_symbol", q, args...)
}

func (s *ClickHousePrices) LatestPerSymbol(ctx context.Context) ([]models.PriceSnapshot, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY symbol ASC, captured_at DESC, id DESC LIMIT 1 BY symbol`,
		chPriceColumns, s.table)
	return s.query(ctx, "latest_per_symbol", q)
}

func (s *ClickHousePrices) NearestPrice(ctx context.Context, symbol string, at time.Time, tolerance time.Duration) (*models.PriceSnapshot, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE symbol = ? AND captured_at BETWEEN ? AND ?
		ORDER BY abs(dateDiff('millisecond', captured_at, ?)) ASC, id DESC
		LIMIT 1`, chPriceColumns, s.table)
	out, err := s.query(ctx, "nearest_price", q, symbol, at.Add(-tolerance).UTC(), at.Add(tolerance).UTC(), at.UTC())
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (s *ClickHousePrices) query(ctx context.Context, op, q string, args ...interface{}) ([]models.PriceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query error", applogger.String("op", op), applogger.Error(err))
		return nil, errs.StorageUnavailable(op, err)
	}
	defer rows.Close()

	out := make([]models.PriceSnapshot, 0, 64)
	for rows.Next() {
		var (
			snap                        models.PriceSnapshot
			chg, vol, mcap, btcd, total sql.NullFloat64
			season                      sql.NullInt32
		)
		if err := rows.Scan(&snap.ID, &snap.Symbol, &snap.Price, &chg, &vol, &mcap, &btcd, &total, &season,
			&snap.CapturedAt, &snap.CreatedAt); err != nil {
			return nil, errs.StorageUnavailable(op, fmt.Errorf("scan: %w", err))
		}
		snap.PriceChange24h = nullFloat(chg)
		snap.Volume24h = nullFloat(vol)
		snap.MarketCap = nullFloat(mcap)
		snap.BTCDominance = nullFloat(btcd)
		snap.Total3MarketCap = nullFloat(total)
		if season.Valid {
			v := int(season.Int32)
			snap.AltcoinSeasonIndex = &v
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.l.Warn("clickhouse query timed out", applogger.String("op", op))
		}
		return nil, errs.StorageUnavailable(op, err)
	}
	return out, nil
}

func (s *ClickHousePrices) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHousePrices) Close() error { return nil }

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
