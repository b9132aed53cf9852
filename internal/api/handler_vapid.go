package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVAPIDPublicKey tells the browser whether seat-release pushes are on and,
// if so, which application server key to subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if !h.push.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "release notifications are disabled",
			"enabled": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_key":  h.push.PublicKey,
		"enabled":     true,
		"ttl_seconds": h.push.TTL,
	})
}
