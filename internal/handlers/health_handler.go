package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/middleware"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	maintenance func() bool
}

func NewHealthHandler(db Pinger, maintenance func() bool) *HealthHandler {
	return &HealthHandler{db: db, maintenance: maintenance}
}

// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health-check [get]
func (h *HealthHandler) Check(c *gin.Context) {
	if h.maintenance != nil && h.maintenance() {
		c.JSON(http.StatusServiceUnavailable, middleware.MaintenanceBody())
		return
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "maintenance": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "maintenance": false})
}
