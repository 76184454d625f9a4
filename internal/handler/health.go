package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"solsniper/internal/engine"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	// DB is nil when the service runs on the in-memory repository.
	DB     Pinger
	Engine *engine.Engine
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
			return
		}
	}
	loops := gin.H{}
	if h.Engine != nil {
		for _, st := range h.Engine.Status() {
			loops[st.Name] = st.Running
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "loops": loops})
}
