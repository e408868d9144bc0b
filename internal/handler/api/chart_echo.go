package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	"FinChart/internal/service/metrics"
	"FinChart/internal/service/ratelimit"
	"FinChart/internal/usecase"
	xhttp "FinChart/pkg/http"
	xlogger "FinChart/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ChartEchoHandler serves rendered charts, the pair catalogue and latest prices.
type ChartEchoHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.ChartUseCase
	rl      *ratelimit.Limiter
	metrics *metrics.Endpoint
	maxAge  int
}

type ChartHandlerOption func(*ChartEchoHandler)

// WithRateLimiter rejects clients over the limiter's budget with 429.
func WithRateLimiter(rl *ratelimit.Limiter) ChartHandlerOption {
	return func(h *ChartEchoHandler) { h.rl = rl }
}

// WithMaxAge sets Cache-Control max-age on rendered charts.
func WithMaxAge(d time.Duration) ChartHandlerOption {
	return func(h *ChartEchoHandler) { h.maxAge = int(d.Seconds()) }
}

func NewChartEchoHandler(logger *xlogger.Logger, uc *usecase.ChartUseCase, m *metrics.Endpoint, opts ...ChartHandlerOption) *ChartEchoHandler {
	h := &ChartEchoHandler{logger: logger, uc: uc, metrics: m}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ChartEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/chart", h.Chart)
	g.POST("/chart/render", h.RenderData)
	g.GET("/pairs", h.Pairs)
	g.GET("/price/:pair", h.Price)
}

// Chart renders the latest candles of a configured pair.
func (h *ChartEchoHandler) Chart(c echo.Context) error {
	const endpoint = "chart"
	defer h.metrics.Observe(endpoint, time.Now())

	if !h.allow(c, endpoint) {
		return xhttp.TooManyRequestsResponse(c)
	}
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Fail(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	img, err := h.uc.Render(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	h.setImageHeaders(c, img)
	return xhttp.BlobResponse(c, img.ContentType, img.Data, h.maxAge)
}

// RenderData renders candles and analysis posted by the caller.
func (h *ChartEchoHandler) RenderData(c echo.Context) error {
	const endpoint = "render"
	defer h.metrics.Observe(endpoint, time.Now())

	if !h.allow(c, endpoint) {
		return xhttp.TooManyRequestsResponse(c)
	}
	req := &models.RenderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Fail(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	img, err := h.uc.RenderData(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	h.setImageHeaders(c, img)
	return xhttp.BlobResponse(c, img.ContentType, img.Data, 0)
}

func (h *ChartEchoHandler) Pairs(c echo.Context) error {
	pairs := h.uc.Pairs()
	return xhttp.ListResponse(c, pairs, int64(len(pairs)))
}

func (h *ChartEchoHandler) Price(c echo.Context) error {
	const endpoint = "price"
	defer h.metrics.Observe(endpoint, time.Now())

	if !h.allow(c, endpoint) {
		return xhttp.TooManyRequestsResponse(c)
	}
	q, err := h.uc.Price(c.Request().Context(), c.Param("pair"))
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, q)
}

func (h *ChartEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	h.metrics.Limited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("rate limited",
		xlogger.String("endpoint", endpoint),
		xlogger.String("remote", c.RealIP()),
	)
	return false
}

func (h *ChartEchoHandler) setImageHeaders(c echo.Context, img *models.ChartImage) {
	hdr := c.Response().Header()
	if img.Cached {
		hdr.Set("X-Cache", "HIT")
	} else {
		hdr.Set("X-Cache", "MISS")
	}
	if !img.Subject.IsZero() {
		hdr.Set("X-Chart-Subject", img.Subject.String())
	}
	// a cached frame is bytes only; its candle count is not known
	if !img.Cached {
		hdr.Set("X-Chart-Candles", strconv.Itoa(img.Candles))
	}
}

// fail maps usecase errors onto API errors.
func (h *ChartEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	h.metrics.Fail(endpoint, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("chart api error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	} else {
		h.logger.Debug("chart api rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var se *xhttp.StatusError
	switch {
	case errors.Is(err, usecase.ErrUnknownPair):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrNoCandles):
		return xhttp.NotFoundError("no candles for the requested chart").WithError(err)
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.As(err, &se):
		return xhttp.UpstreamError("market data backend unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UpstreamError("market data backend timed out").WithError(err)
	default:
		return xhttp.InternalError("chart rendering failed").WithError(err)
	}
}
