// Package api exposes the read and operator surface over HTTP.
package api

import (
	"strconv"
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/store"
	"MarketPull/internal/usecase"
	pkghttp "MarketPull/pkg/http"
	"MarketPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

const defaultHistoryLimit = 100

// FactsHandler serves fact reads, history, forced refreshes and status.
type FactsHandler struct {
	orch *usecase.Orchestrator
	log  *logger.Logger
}

// NewFactsHandler creates the handler.
func NewFactsHandler(orch *usecase.Orchestrator, log *logger.Logger) *FactsHandler {
	return &FactsHandler{orch: orch, log: log}
}

// RegisterRoutes wires the handler into the echo router.
func (h *FactsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/api/status", h.Status)

	g := e.Group("/api/facts")
	g.GET("/:id", h.GetFact)
	g.GET("/:id/history", h.GetHistory)
	g.POST("/:id/refresh", h.Refresh)
}

// GetFact serves the current record for one source. An empty source
// answers 202: a crawl has been kicked off, ask again shortly.
func (h *FactsHandler) GetFact(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	res, err := h.orch.Read(ctx, id)
	if err != nil {
		if store.IsEmpty(err) {
			return pkghttp.AcceptedResponse(c, map[string]string{
				"source_id": id,
				"detail":    "no record yet, crawl scheduled",
			})
		}
		h.log.Error("read failed", logger.String("source", id), logger.Err(err))
		return pkghttp.ServiceUnavailableResponse(c, map[string]string{"source_id": id})
	}

	return pkghttp.SuccessResponse(c, map[string]interface{}{
		"record": res.Record,
		"cached": res.Cached,
		"stale":  res.Stale,
	})
}

// GetHistory serves archived observations, newest first. from/to are
// RFC3339; the window defaults to the last 24 hours.
func (h *FactsHandler) GetHistory(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	now := time.Now()
	from := now.Add(-24 * time.Hour)
	to := now
	if s := c.QueryParam("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return pkghttp.BadRequestResponse(c, map[string]string{"detail": "invalid from: " + s})
		}
		from = t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return pkghttp.BadRequestResponse(c, map[string]string{"detail": "invalid to: " + s})
		}
		to = t
	}
	limit := defaultHistoryLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return pkghttp.BadRequestResponse(c, map[string]string{"detail": "invalid limit: " + s})
		}
		limit = n
	}

	recs, err := h.orch.History(ctx, id, from, to, limit)
	if err != nil {
		h.log.Error("history read failed", logger.String("source", id), logger.Err(err))
		return pkghttp.ServiceUnavailableResponse(c, map[string]string{"source_id": id})
	}
	if recs == nil {
		recs = []*models.CanonicalRecord{}
	}
	return pkghttp.SuccessResponse(c, map[string]interface{}{
		"source_id": id,
		"records":   recs,
	})
}

// Refresh crawls a source immediately, outside its schedule.
func (h *FactsHandler) Refresh(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	outcome, err := h.orch.ForceRefresh(ctx, id)
	if err != nil {
		return pkghttp.NotFoundResponse(c, map[string]string{"source_id": id})
	}
	return pkghttp.SuccessResponse(c, outcome)
}

// Status reports per-source tier state.
func (h *FactsHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	ids := h.orch.Sources()
	statuses := make([]models.SourceStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, h.orch.Status(ctx, id))
	}
	return pkghttp.SuccessResponse(c, map[string]interface{}{
		"sources": statuses,
	})
}

// Healthz answers 200 when both storage tiers are reachable.
func (h *FactsHandler) Healthz(c echo.Context) error {
	if err := h.orch.Healthy(c.Request().Context()); err != nil {
		return pkghttp.ServiceUnavailableResponse(c, map[string]string{"detail": err.Error()})
	}
	return pkghttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
