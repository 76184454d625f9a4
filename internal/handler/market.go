package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solsniper/internal/fees"
	"solsniper/internal/repository"
	"solsniper/internal/volume"
)

type FeesHandler struct {
	Fees *fees.Service
}

func (h *FeesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/fees")
	g.GET("", h.current)
	g.GET("/tiers", h.tiers)
	g.POST("/refresh", h.refresh)
}

func (h *FeesHandler) current(c *gin.Context) {
	Ok(c, h.Fees.Current(c.Request.Context()), nil)
}

func (h *FeesHandler) tiers(c *gin.Context) {
	Ok(c, h.Fees.Tiers(c.Request.Context()), nil)
}

func (h *FeesHandler) refresh(c *gin.Context) {
	Ok(c, h.Fees.Refresh(c.Request.Context()), nil)
}

type VolumeHandler struct {
	Trader *volume.Trader
	Repo   repository.Repository
}

func (h *VolumeHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/volume")
	g.GET("/observations", h.observations)
	g.GET("/stats", h.stats)
	g.GET("/trades", h.trades)
}

func (h *VolumeHandler) observations(c *gin.Context) {
	items := h.Trader.Observations()
	if limit := intQuery(c, "limit", 0); limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *VolumeHandler) stats(c *gin.Context) {
	Ok(c, h.Trader.Stats(), nil)
}

func (h *VolumeHandler) trades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit, offset := pageQuery(c)
	items, err := h.Repo.ListVolumeTrades(c.Request.Context(), repository.ListVolumeTradesParams{
		Limit:    limit,
		Offset:   offset,
		Strategy: strQueryPtr(c, "strategy"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": limit, "offset": offset})
}
