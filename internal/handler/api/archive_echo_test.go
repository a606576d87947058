package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngestor struct {
	batch  models.PriceBatch
	rec    models.Recommendation
	err    error
	queued bool
}

func (s *stubIngestor) LogPrices(_ context.Context, b models.PriceBatch) (int, error) {
	s.batch = b
	return len(b.Prices), s.err
}

func (s *stubIngestor) LogRecommendation(_ context.Context, r models.Recommendation) (int64, error) {
	s.rec = r
	if s.err != nil {
		return 0, s.err
	}
	return 7, nil
}

func (s *stubIngestor) Queued() bool { return s.queued }

type stubHistory struct {
	days   int
	symbol string
	filter models.AccuracyFilter
	err    error
}

func (s *stubHistory) HistoricalPrices(_ context.Context, symbol string, days int) ([]models.PriceSnapshot, error) {
	s.symbol, s.days = symbol, days
	return []models.PriceSnapshot{{ID: 1, Symbol: symbol, Price: 150}}, s.err
}

func (s *stubHistory) HistoricalRecommendations(_ context.Context, symbol string, days int) ([]models.Recommendation, error) {
	s.symbol, s.days = symbol, days
	return []models.Recommendation{}, s.err
}

func (s *stubHistory) PredictionAccuracy(_ context.Context, f models.AccuracyFilter) (models.AccuracyStats, error) {
	s.filter = f
	return models.AccuracyStats{}, s.err
}

func (s *stubHistory) AllLatestPrices(context.Context) ([]models.PriceSnapshot, error) {
	return nil, s.err
}

type stubGrader struct {
	id      int64
	actual  float64
	verdict models.Verdict
	err     error
}

func (g *stubGrader) GradeDue(context.Context, time.Time) (models.GradeReport, error) {
	return models.GradeReport{}, nil
}

func (g *stubGrader) ApplyVerdict(_ context.Context, id int64, actual float64, v models.Verdict) error {
	g.id, g.actual, g.verdict = id, actual, v
	return g.err
}

type stubMarket struct {
	err error
}

func (m stubMarket) Dominance(context.Context) (models.DominanceSnapshot, error) {
	return models.DominanceSnapshot{BTCDominance: 57.2}, m.err
}

func (m stubMarket) Overview(context.Context) (models.MarketOverview, error) {
	return models.MarketOverview{AltcoinSeasonIndex: 40}, m.err
}

type fixture struct {
	e       *echo.Echo
	ingest  *stubIngestor
	history *stubHistory
	grader  *stubGrader
	market  *stubMarket
}

func newFixture() *fixture {
	f := &fixture{ingest: &stubIngestor{}, history: &stubHistory{}, grader: &stubGrader{}, market: &stubMarket{}}
	f.e = echo.New()
	NewArchiveEchoHandler(nil, f.ingest, f.history, f.grader, f.market).RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestLogPricesEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/archive/prices",
		`{"prices":[{"symbol":"SOL","price":150.5,"volume24h":1000}],"btcDominance":57.1,"altcoinSeasonIndex":38}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.ingest.batch.Prices, 1)
	assert.Equal(t, "SOL", f.ingest.batch.Prices[0].Symbol)
	require.NotNil(t, f.ingest.batch.MarketContext.AltcoinSeasonIndex)
	assert.Equal(t, 38, *f.ingest.batch.MarketContext.AltcoinSeasonIndex)
	assert.Contains(t, rec.Body.String(), `"written":1`)
}

func TestLogPricesRejectsBadInput(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/archive/prices", `{"prices":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/archive/prices", `{"prices":[{"symbol":"BTC","price":-1}]}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/archive/prices", `{"prices":[{"symbol":"BTC","price":1}],"btcDominance":120}`).Code)
}

func TestLogPricesQueued(t *testing.T) {
	f := newFixture()
	f.ingest.queued = true
	rec := f.do(http.MethodPost, "/api/archive/prices", `{"prices":[{"symbol":"BTC","price":64000}]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLogRecommendationEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/archive/recommendations",
		`{"symbol":"SOL","action":"BUY","conviction":"STRONG","predictedPriceChange":20,"predictionTimeframe":"30D"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":7`)
	assert.Equal(t, models.TF30D, f.ingest.rec.PredictionTimeframe)

	bad := f.do(http.MethodPost, "/api/archive/recommendations", `{"symbol":"SOL","action":"WAIT","conviction":"STRONG"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Contains(t, bad.Body.String(), "ERR_ONEOF")
}

func TestUpdateVerdictEndpoint(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/archive/recommendations/12/verdict", `{"actualPriceChange":25,"predictionAccurate":"YES"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(12), f.grader.id)
	assert.Equal(t, 25.0, f.grader.actual)
	assert.Equal(t, models.VerdictYes, f.grader.verdict)

	rec = f.do(http.MethodPost, "/api/archive/recommendations/12/verdict", `{"actualPriceChange":25,"predictionAccurate":"PENDING"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errs.Validation("log", "symbol", "symbol is required"), http.StatusBadRequest, "ERR_VALIDATION_ERROR"},
		{"not found", errs.NotFound("update_verdict", 12), http.StatusNotFound, "ERR_NOT_FOUND"},
		{"already graded", errs.AlreadyGraded(12, "YES"), http.StatusConflict, "ERR_ALREADY_GRADED"},
		{"storage", errs.StorageUnavailable("update_verdict", errors.New("down")), http.StatusServiceUnavailable, "ERR_STORAGE_UNAVAILABLE"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.grader.err = tt.err
			rec := f.do(http.MethodPost, "/api/archive/recommendations/12/verdict", `{"actualPriceChange":1,"predictionAccurate":"NO"}`)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusInternalServerError {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/api/archive/prices/SOL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, f.history.days)
	assert.Equal(t, "SOL", f.history.symbol)

	var body struct {
		Data struct {
			Rows  []models.PriceSnapshot `json:"rows"`
			Total int64                  `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.Total)

	rec = f.do(http.MethodGet, "/api/archive/recommendations/ETH?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, f.history.days)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/archive/prices/SOL?days=400", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/archive/accuracy?timeframe=90D", "").Code)

	rec = f.do(http.MethodGet, "/api/archive/accuracy?symbol=BTC&timeframe=7D", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AccuracyFilter{Symbol: "BTC", Timeframe: models.TF7D}, f.history.filter)

	f.history.err = errs.StorageUnavailable("latest_per_symbol", errors.New("down"))
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/archive/latest", "").Code)
}

func TestMarketEndpoints(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/market/dominance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"btcDominance":57.2`)

	f.market.err = errs.IncompleteBasket("BTC")
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodGet, "/api/market/overview", "").Code)
}
