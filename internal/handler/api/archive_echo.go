package api

import (
	"errors"
	"fmt"
	"net/http"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	dsvc "CryptoArchive/internal/domain/service"
	xhttp "CryptoArchive/pkg/http"
	applogger "CryptoArchive/pkg/logger"

	"github.com/labstack/echo/v4"
)

// queued is implemented by ingestors that only enqueue writes.
type queued interface {
	Queued() bool
}

// ArchiveEchoHandler serves the archive write and read endpoints and the market signals.
type ArchiveEchoHandler struct {
	logger  *applogger.Logger
	ingest  dsvc.Ingestor
	history dsvc.HistoryReader
	grader  dsvc.Grader
	market  dsvc.MarketReader
}

func NewArchiveEchoHandler(logger *applogger.Logger, ingest dsvc.Ingestor, history dsvc.HistoryReader, grader dsvc.Grader, market dsvc.MarketReader) *ArchiveEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ArchiveEchoHandler{logger: logger, ingest: ingest, history: history, grader: grader, market: market}
}

func (h *ArchiveEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/archive")
	g.POST("/prices", h.LogPrices)
	g.POST("/recommendations", h.LogRecommendation)
	g.POST("/recommendations/:id/verdict", h.UpdateVerdict)
	g.GET("/prices/:symbol", h.HistoricalPrices)
	g.GET("/recommendations/:symbol", h.HistoricalRecommendations)
	g.GET("/accuracy", h.PredictionAccuracy)
	g.GET("/latest", h.AllLatestPrices)

	if h.market != nil {
		m := e.Group("/api/market")
		m.GET("/dominance", h.Dominance)
		m.GET("/overview", h.Overview)
	}
}

func (h *ArchiveEchoHandler) isQueued() bool {
	q, ok := h.ingest.(queued)
	return ok && q.Queued()
}

func (h *ArchiveEchoHandler) LogPrices(c echo.Context) error {
	req := &models.LogPricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.ingest.LogPrices(c.Request().Context(), req.Batch())
	if err != nil {
		return h.fail(c, "log prices", err)
	}
	if h.isQueued() {
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]int{"queued": len(req.Prices)})
	}
	return xhttp.CreatedResponse(c, map[string]int{"written": n})
}

func (h *ArchiveEchoHandler) LogRecommendation(c echo.Context) error {
	req := &models.LogRecommendationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id, err := h.ingest.LogRecommendation(c.Request().Context(), req.Recommendation())
	if err != nil {
		return h.fail(c, "log recommendation", err)
	}
	if h.isQueued() {
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]bool{"queued": true})
	}
	return xhttp.CreatedResponse(c, map[string]int64{"id": id})
}

func (h *ArchiveEchoHandler) UpdateVerdict(c echo.Context) error {
	req := &models.UpdateVerdictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.grader.ApplyVerdict(c.Request().Context(), req.ID, *req.ActualPriceChange, models.Verdict(req.Verdict))
	if err != nil {
		return h.fail(c, "update verdict", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *ArchiveEchoHandler) HistoricalPrices(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.HistoricalPrices(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		return h.fail(c, "historical prices", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ArchiveEchoHandler) HistoricalRecommendations(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.HistoricalRecommendations(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		return h.fail(c, "historical recommendations", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ArchiveEchoHandler) PredictionAccuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats, err := h.history.PredictionAccuracy(c.Request().Context(), models.AccuracyFilter{
		Symbol:    req.Symbol,
		Timeframe: models.Timeframe(req.Timeframe),
	})
	if err != nil {
		return h.fail(c, "prediction accuracy", err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *ArchiveEchoHandler) AllLatestPrices(c echo.Context) error {
	rows, err := h.history.AllLatestPrices(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest prices", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ArchiveEchoHandler) Dominance(c echo.Context) error {
	d, err := h.market.Dominance(c.Request().Context())
	if err != nil {
		return h.fail(c, "dominance", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, d)
}

func (h *ArchiveEchoHandler) Overview(c echo.Context) error {
	o, err := h.market.Overview(c.Request().Context())
	if err != nil {
		return h.fail(c, "overview", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, o)
}

func (h *ArchiveEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	fields := []applogger.Field{applogger.Error(err)}
	var e *errs.Error
	if errors.As(err, &e) {
		fields = append(fields, applogger.String("kind", string(e.Kind)))
		if len(e.Fields) > 0 {
			fields = append(fields, applogger.Any("context", e.Fields))
		}
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", fields...)
	} else {
		h.logger.Debug(op+" rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps archive error kinds onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var e *errs.Error
	if !errors.As(err, &e) {
		return xhttp.InternalError("unexpected error").WithError(err)
	}

	var appErr *xhttp.AppError
	switch e.Kind {
	case errs.KindValidation:
		appErr = xhttp.BadRequestError(unwrapMessage(e))
		if f, ok := e.Fields["field"].(string); ok {
			appErr.Field = f
		}
	case errs.KindNotFound:
		appErr = xhttp.NotFoundError("recommendation not found")
	case errs.KindAlreadyGraded:
		appErr = xhttp.ConflictError("recommendation already graded")
	case errs.KindIncompleteBasket:
		appErr = xhttp.UnprocessableError("dominance basket incomplete")
	case errs.KindStorageUnavailable:
		appErr = xhttp.ServiceUnavailableError("archive storage unavailable")
	case errs.KindRealizedPriceUnavailable, errs.KindUpstreamUnavailable:
		appErr = xhttp.ServiceUnavailableError("market data unavailable")
	default:
		return xhttp.InternalError("unexpected error").WithError(err)
	}
	appErr.Code = "ERR_" + string(e.Kind)
	for k, v := range e.Fields {
		if k != "field" {
			appErr.WithParam(k, v)
		}
	}
	return appErr
}

func unwrapMessage(e *errs.Error) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s request", e.Op)
}
