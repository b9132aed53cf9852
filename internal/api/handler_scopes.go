package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyhall-backend/internal/parse"
	"studyhall-backend/internal/protocol"
	"studyhall-backend/internal/scope"
	"studyhall-backend/internal/sensor"
)

type seatsResponse struct {
	Floor int                 `json:"floor"`
	Zone  *string             `json:"zone"`
	Label string              `json:"label"`
	Seats []protocol.SeatInfo `json:"seats"`
}

type sensorResponse struct {
	Floor     int       `json:"floor"`
	Zone      *string   `json:"zone"`
	Label     string    `json:"label"`
	Temp      float64   `json:"temp"`
	CO2       float64   `json:"co2"`
	Lux       float64   `json:"lux"`
	Sender    string    `json:"sender,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newSensorResponse(s sensor.Snapshot) sensorResponse {
	return sensorResponse{
		Floor:     s.Scope.Floor,
		Zone:      s.Scope.Zone.Ptr(),
		Label:     s.Scope.String(),
		Temp:      s.Temp,
		CO2:       s.CO2,
		Lux:       s.Lux,
		Sender:    s.Sender,
		UpdatedAt: s.UpdatedAt,
	}
}

func scopeParam(c *gin.Context) (scope.Scope, bool) {
	sc, err := parse.ScopeLabel(c.Param("label"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return scope.Scope{}, false
	}
	return sc, true
}

// GetScopeSeats handles GET /api/scopes/:label/seats.
func (h *Handler) GetScopeSeats(c *gin.Context) {
	sc, ok := scopeParam(c)
	if !ok {
		return
	}

	seats, err := h.occupancy.SeatsInScope(c.Request.Context(), sc)
	if err != nil {
		h.log.Error("failed to list seats", zap.Stringer("scope", sc), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve seats"})
		return
	}
	if len(seats) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown scope"})
		return
	}

	c.JSON(http.StatusOK, seatsResponse{
		Floor: sc.Floor,
		Zone:  sc.Zone.Ptr(),
		Label: sc.String(),
		Seats: seats,
	})
}

// GetScopeSensors handles GET /api/scopes/:label/sensors.
func (h *Handler) GetScopeSensors(c *gin.Context) {
	sc, ok := scopeParam(c)
	if !ok {
		return
	}
	snap, found := h.sensors.Latest(sc)
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no reading for scope"})
		return
	}
	c.JSON(http.StatusOK, newSensorResponse(snap))
}

// GetSensors handles GET /api/sensors.
func (h *Handler) GetSensors(c *gin.Context) {
	all := h.sensors.All()
	out := make([]sensorResponse, 0, len(all))
	for _, s := range all {
		out = append(out, newSensorResponse(s))
	}
	c.JSON(http.StatusOK, out)
}
