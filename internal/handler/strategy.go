package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solsniper/internal/strategy"
)

type StrategyHandler struct {
	Store *strategy.Store
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/strategy")
	g.GET("", h.get)
	g.PUT("", h.put)
	g.PUT("/volume/:name", h.putVolume)
}

func (h *StrategyHandler) get(c *gin.Context) {
	Ok(c, h.Store.Current(), nil)
}

// put replaces the whole configuration. The new version applies to the next
// scan and to every open position's next evaluation.
func (h *StrategyHandler) put(c *gin.Context) {
	var next strategy.Config
	if err := c.ShouldBindJSON(&next); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	cfg, err := h.Store.Update(c.Request.Context(), next, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	Ok(c, cfg, nil)
}

type putVolumeRequest struct {
	Enabled      *bool    `json:"enabled"`
	MinVolume    *float64 `json:"min_volume"`
	MaxSlippage  *float64 `json:"max_slippage"`
	TargetImpact *float64 `json:"target_impact"`
	CooldownMs   *int64   `json:"cooldown_ms"`
}

func (h *StrategyHandler) putVolume(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	var req putVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if _, ok := h.Store.Current().VolumeByName(name); !ok {
		Error(c, http.StatusNotFound, "volume strategy not found", nil)
		return
	}
	cfg, err := h.Store.Patch(c.Request.Context(), actor(c), func(cfg *strategy.Config) {
		for i := range cfg.Volume {
			v := &cfg.Volume[i]
			if v.Name != name {
				continue
			}
			if req.Enabled != nil {
				v.Enabled = *req.Enabled
			}
			if req.MinVolume != nil {
				v.MinVolume = *req.MinVolume
			}
			if req.MaxSlippage != nil {
				v.MaxSlippage = *req.MaxSlippage
			}
			if req.TargetImpact != nil {
				v.TargetImpact = *req.TargetImpact
			}
			if req.CooldownMs != nil {
				v.CooldownMs = *req.CooldownMs
			}
		}
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	v, _ := cfg.VolumeByName(name)
	Ok(c, v, map[string]any{"version": cfg.Version})
}

func (h *StrategyHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, strategy.ErrConfigInvalid) {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Error(c, http.StatusBadGateway, err.Error(), nil)
}
