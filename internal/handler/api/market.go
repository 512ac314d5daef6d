package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketWatch/internal/domain"
	"MarketWatch/internal/domain/models"
	"MarketWatch/internal/service/ratelimit"
	"MarketWatch/internal/usecase"
	xhttp "MarketWatch/pkg/http"
	xlogger "MarketWatch/pkg/logger"
	"MarketWatch/pkg/util"
)

// defaultSignalsWindow bounds history queries without a from parameter.
const defaultSignalsWindow = 24 * time.Hour

// MarketHandler serves the read-only monitoring API.
type MarketHandler struct {
	logger *xlogger.Logger
	query  *usecase.MarketQuery
	rl     *ratelimit.Keyed
	now    func() time.Time
}

// NewMarketHandler creates the handler. rl limits history queries per client
// and may be nil.
func NewMarketHandler(logger *xlogger.Logger, query *usecase.MarketQuery, rl *ratelimit.Keyed) *MarketHandler {
	return &MarketHandler{logger: logger.With("api"), query: query, rl: rl, now: time.Now}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/symbols", h.Symbols)
	g.GET("/symbols/:symbol", h.Symbol)
	g.GET("/signals", h.Signals)
}

func (h *MarketHandler) Health(c echo.Context) error {
	res := h.query.Health(c.Request().Context())
	status := http.StatusOK
	if res.Status != usecase.HealthOK {
		status = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, status, res)
}

func (h *MarketHandler) Symbols(c echo.Context) error {
	rows := h.query.Symbols()
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *MarketHandler) Symbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	g := models.NormalizeGranularity(req.TF, models.G5m)

	res, err := h.query.Symbol(req.Symbol, g)
	if err != nil {
		if errors.Is(err, domain.ErrSymbolNotMonitored) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("symbol %s is not monitored", models.NormalizeSymbol(req.Symbol)))
		}
		h.logger.Error("symbol query error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("symbol query failed").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Signals(c echo.Context) error {
	if h.rl != nil && !h.rl.Allow(c.RealIP()+":signals") {
		h.logger.Warn("signals rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
	}
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := util.TimeRange(req.From, req.To, h.now(), defaultSignalsWindow)
	from, to = util.AlignFromTo(from, to, time.Second)

	rows, err := h.query.Signals(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrStorageDisabled) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("signal history is not enabled"))
		}
		h.logger.Error("signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("signals query failed").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

var _ xhttp.Handler = (*MarketHandler)(nil)
