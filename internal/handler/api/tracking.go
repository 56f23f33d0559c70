package api

import (
	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/scheduler"
	"GreyPulse/internal/usecase"
	xhttp "GreyPulse/pkg/http"
	xlogger "GreyPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TrackingHandler exposes the engine's operational HTTP surface:
// universe administration, latest/history reads, and user thresholds.
type TrackingHandler struct {
	logger *xlogger.Logger
	sched  *scheduler.Scheduler
	runner *usecase.CycleRunner
	alerts *usecase.AlertEvaluator
	health func(c echo.Context) error
}

func NewTrackingHandler(
	logger *xlogger.Logger,
	sched *scheduler.Scheduler,
	runner *usecase.CycleRunner,
	alerts *usecase.AlertEvaluator,
) *TrackingHandler {
	return &TrackingHandler{logger: logger, sched: sched, runner: runner, alerts: alerts}
}

// SetHealthCheck overrides the default liveness-only health handler.
func (h *TrackingHandler) SetHealthCheck(fn func(c echo.Context) error) { h.health = fn }

func (h *TrackingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.POST("/instruments", h.Track)
	g.GET("/instruments/:id", h.InstrumentStatus)
	g.DELETE("/instruments/:id", h.Untrack)
	g.POST("/instruments/:id/pause", h.Pause)
	g.POST("/instruments/:id/resume", h.Resume)
	g.PUT("/instruments/:id/status", h.UpdateStatus)
	g.GET("/instruments/:id/latest", h.Latest)
	g.GET("/instruments/:id/history", h.History)
	g.POST("/instruments/:id/thresholds", h.RegisterThreshold)
	g.GET("/instruments/:id/thresholds", h.Thresholds)
}

func (h *TrackingHandler) Healthz(c echo.Context) error {
	if h.health != nil {
		return h.health(c)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Status returns the operational view of every tracked instrument,
// including paused/degraded ones.
func (h *TrackingHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sched.Status())
}

type trackRequest struct {
	ID         string  `json:"id" validate:"required"`
	Symbol     string  `json:"symbol" validate:"required"`
	Status     string  `json:"status" default:"upcoming" validate:"oneof=upcoming open closed listed"`
	IssuePrice float64 `json:"issue_price" validate:"gte=0"`
	BandLow    float64 `json:"band_low" validate:"gte=0"`
	BandHigh   float64 `json:"band_high" validate:"gte=0"`
}

func (h *TrackingHandler) Track(c echo.Context) error {
	req := &trackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	inst := models.TrackedInstrument{
		ID:         req.ID,
		Symbol:     req.Symbol,
		Status:     models.InstrumentStatus(req.Status),
		IssuePrice: req.IssuePrice,
		BandLow:    req.BandLow,
		BandHigh:   req.BandHigh,
	}
	if err := h.sched.Track(inst); err != nil {
		h.logger.Warn("track request rejected",
			xlogger.String("instrument", req.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.CreatedResponse(c, inst)
}

func (h *TrackingHandler) InstrumentStatus(c echo.Context) error {
	st, err := h.sched.InstrumentStatus(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *TrackingHandler) Untrack(c echo.Context) error {
	if err := h.sched.Untrack(c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.NoContentResponse(c)
}

func (h *TrackingHandler) Pause(c echo.Context) error {
	if err := h.sched.Pause(c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "paused"})
}

func (h *TrackingHandler) Resume(c echo.Context) error {
	if err := h.sched.Resume(c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "resumed"})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=upcoming open closed listed"`
}

func (h *TrackingHandler) UpdateStatus(c echo.Context) error {
	req := &statusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.sched.UpdateStatus(c.Param("id"), models.InstrumentStatus(req.Status)); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": req.Status})
}

// Latest serves the freshest consensus, falling back to the persisted
// store when the cache is cold.
func (h *TrackingHandler) Latest(c echo.Context) error {
	id := c.Param("id")
	r, err := h.runner.Latest(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("latest reading error",
			xlogger.String("instrument", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if r == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no readings for %s", id))
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *TrackingHandler) History(c echo.Context) error {
	id := c.Param("id")
	count := xhttp.ParseIntDefault(c.QueryParam("count"), 50)
	if count < 1 || count > 1000 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("count must be in [1,1000]"))
	}
	rows, err := h.runner.History(c.Request().Context(), id, count)
	if err != nil {
		h.logger.Error("history error",
			xlogger.String("instrument", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

type thresholdRequest struct {
	Value     float64 `json:"value" validate:"required,gt=0"`
	Direction string  `json:"direction" validate:"required,oneof=above below"`
	UserID    string  `json:"user_id"`
}

// RegisterThreshold adds a one-shot user threshold for an instrument.
func (h *TrackingHandler) RegisterThreshold(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.sched.Instrument(id); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}

	req := &thresholdRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	t := h.alerts.RegisterThreshold(models.UserThreshold{
		InstrumentID: id,
		Value:        req.Value,
		Direction:    models.ThresholdDirection(req.Direction),
		UserID:       req.UserID,
	})
	return xhttp.CreatedResponse(c, t)
}

func (h *TrackingHandler) Thresholds(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.sched.Instrument(id); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	ts := h.alerts.Thresholds(id)
	return xhttp.ListResponse(c, ts, int64(len(ts)))
}
