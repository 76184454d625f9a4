package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solsniper/internal/position"
	"solsniper/internal/repository"
)

type PositionsHandler struct {
	Manager *position.Manager
	Repo    repository.Repository
}

func (h *PositionsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/positions")
	g.GET("", h.list)
	g.GET("/history", h.history)
	g.GET("/:id", h.get)
	g.POST("/:id/close", h.close)

	r.GET("/api/v1/performance", h.performance)
}

// list serves the live book, newest first. ?state= narrows it.
func (h *PositionsHandler) list(c *gin.Context) {
	var states []position.State
	for _, s := range strings.Split(c.Query("state"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, position.State(s))
		}
	}
	items := h.Manager.Book.List(states...)
	Ok(c, items, map[string]any{"total": len(items), "active": h.Manager.Book.ActiveCount()})
}

// history pages through persisted positions, including ones pruned from the book.
func (h *PositionsHandler) history(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c)
	params := repository.ListPositionsParams{
		Limit:     limit,
		Offset:    offset,
		State:     strQueryPtr(c, "state"),
		SubjectID: strQueryPtr(c, "subject"),
		OrderBy:   "opened_at",
	}
	rows, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	items := make([]position.Position, 0, len(rows))
	for _, row := range rows {
		items = append(items, position.FromModel(row))
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get a position
// @Tags positions
// @Param id path string true "position id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/positions/{id} [get]
func (h *PositionsHandler) get(c *gin.Context) {
	p, ok := h.Manager.Book.Get(strings.TrimSpace(c.Param("id")))
	if !ok {
		Error(c, http.StatusNotFound, "position not found", nil)
		return
	}
	Ok(c, p, nil)
}

// @Summary Close a position at the current price
// @Tags positions
// @Param id path string true "position id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/positions/{id}/close [post]
func (h *PositionsHandler) close(c *gin.Context) {
	p, err := h.Manager.Close(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	switch {
	case err == nil:
		Ok(c, p, nil)
	case errors.Is(err, position.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, position.ErrInvalidTransition):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"position": p})
	}
}

// @Summary Trading performance
// @Tags positions
// @Success 200 {object} apiResponse
// @Router /api/v1/performance [get]
func (h *PositionsHandler) performance(c *gin.Context) {
	Ok(c, h.Manager.Performance(), nil)
}
