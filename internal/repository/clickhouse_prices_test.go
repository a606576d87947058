package repository

import (
	"strings"
	"testing"
	"time"

	"CryptoArchive/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPriceInsert(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	idx := 55
	q, args := buildPriceInsert("archive.daily_price_logs", at, []models.PricePoint{
		{Symbol: "BTC", Price: 64000},
		{Symbol: "ETH", Price: 3100, Volume24h: f64(1e9)},
	}, models.MarketContext{BTCDominance: f64(57.2), AltcoinSeasonIndex: &idx})

	assert.True(t, strings.HasPrefix(q, "INSERT INTO archive.daily_price_logs"))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 20)

	id0, id1 := args[0].(int64), args[10].(int64)
	assert.Equal(t, id0+1, id1)
	assert.Equal(t, "ETH", args[11])
	assert.Equal(t, f64(1e9), args[14])
	season := args[8].(*int32)
	require.NotNil(t, season)
	assert.Equal(t, int32(55), *season)
	assert.Equal(t, at, args[9])
}

func TestClickHouseSchemaUsesDatabase(t *testing.T) {
	stmts := ClickHouseSchema("archive")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "archive.daily_price_logs")
	assert.Contains(t, stmts[1], "ORDER BY (symbol, captured_at, id)")
}
