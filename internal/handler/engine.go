package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solsniper/internal/engine"
)

type EngineHandler struct {
	Engine *engine.Engine
}

func (h *EngineHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/engine")
	g.GET("/loops", h.loops)
	g.POST("/loops/:name/start", h.start)
	g.POST("/loops/:name/stop", h.stop)
	g.POST("/scan", h.scan)
	g.GET("/admission", h.admission)

	r.GET("/api/v1/targets", h.targets)
}

// @Summary List engine loops
// @Tags engine
// @Success 200 {object} apiResponse
// @Router /api/v1/engine/loops [get]
func (h *EngineHandler) loops(c *gin.Context) {
	Ok(c, h.Engine.Status(), nil)
}

// @Summary Start an engine loop
// @Tags engine
// @Param name path string true "scan|monitor|volume"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/engine/loops/{name}/start [post]
func (h *EngineHandler) start(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	changed, err := h.Engine.Start(c.Request.Context(), name)
	if err != nil {
		h.loopError(c, err)
		return
	}
	Ok(c, gin.H{"loop": name, "running": true, "changed": changed}, nil)
}

// @Summary Stop an engine loop
// @Tags engine
// @Param name path string true "scan|monitor|volume"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/engine/loops/{name}/stop [post]
func (h *EngineHandler) stop(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	changed, err := h.Engine.Stop(c.Request.Context(), name)
	if err != nil {
		h.loopError(c, err)
		return
	}
	Ok(c, gin.H{"loop": name, "running": false, "changed": changed}, nil)
}

func (h *EngineHandler) loopError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrUnknownLoop) {
		Error(c, http.StatusNotFound, err.Error(), map[string]any{"loops": engine.LoopNames()})
		return
	}
	Error(c, http.StatusInternalServerError, err.Error(), nil)
}

// scan runs one discovery pass outside the loop schedule.
// @Summary Run one discovery pass
// @Tags engine
// @Success 200 {object} apiResponse
// @Router /api/v1/engine/scan [post]
func (h *EngineHandler) scan(c *gin.Context) {
	if err := h.Engine.ScanOnce(c.Request.Context()); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, h.Engine.Targets(), nil)
}

// @Summary List ranked targets
// @Tags engine
// @Param min_priority query number false "minimum priority"
// @Success 200 {object} apiResponse
// @Router /api/v1/targets [get]
func (h *EngineHandler) targets(c *gin.Context) {
	items := h.Engine.Targets()
	if minPriority := floatQuery(c, "min_priority", 0); minPriority > 0 {
		kept := items[:0]
		for _, t := range items {
			if t.Priority >= minPriority {
				kept = append(kept, t)
			}
		}
		items = kept
	}
	Ok(c, items, map[string]any{"capacity": h.Engine.Ranker.Capacity(), "total": len(items)})
}

// admission reports what the controller would decide for a priority and
// subject without reserving a slot.
func (h *EngineHandler) admission(c *gin.Context) {
	subject := strings.TrimSpace(c.Query("subject"))
	priority := floatQuery(c, "priority", -1)
	if priority < 0 {
		if t, ok := h.Engine.Ranker.Get(subject); ok {
			priority = t.Priority
		} else {
			Error(c, http.StatusBadRequest, "priority or a ranked subject is required", nil)
			return
		}
	}
	Ok(c, h.Engine.Admission.Check(priority, subject), nil)
}
