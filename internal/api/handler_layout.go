package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyhall-backend/internal/scope"
)

type layoutEntry struct {
	Floor int     `json:"floor"`
	Zone  *string `json:"zone"`
	Label string  `json:"label"`
	Seats int64   `json:"seats"`
}

// GetLayout handles GET /api/layout: seat counts per scope.
func (h *Handler) GetLayout(c *gin.Context) {
	counts, err := h.store.SeatCounts(c.Request.Context())
	if err != nil {
		h.log.Error("failed to load layout", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve layout"})
		return
	}

	out := make([]layoutEntry, 0, len(counts))
	for _, sc := range counts {
		zone, err := scope.ParseZonePtr(sc.Zone)
		if err != nil {
			continue
		}
		out = append(out, layoutEntry{
			Floor: sc.Floor,
			Zone:  sc.Zone,
			Label: scope.New(sc.Floor, zone).String(),
			Seats: sc.Seats,
		})
	}
	c.JSON(http.StatusOK, out)
}
