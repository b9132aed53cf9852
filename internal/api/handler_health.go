package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetHealth handles GET /healthz.
func (h *Handler) GetHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if h.store != nil {
		if sqlDB, err := h.store.DB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
	}

	connections := 0
	if h.hub != nil {
		connections = h.hub.Len()
	}
	c.JSON(code, gin.H{"status": status, "connections": connections})
}
