package api

import (
	"go.uber.org/zap"

	"studyhall-backend/config"
	"studyhall-backend/internal/hub"
	"studyhall-backend/internal/occupancy"
	"studyhall-backend/internal/sensor"
	"studyhall-backend/internal/store"
)

// Deps are the components the HTTP handlers read from.
type Deps struct {
	Store     store.Store
	Occupancy *occupancy.Service
	Sensors   *sensor.Cache
	Hub       *hub.Hub
	Push      config.PushConfig
	Log       *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	occupancy *occupancy.Service
	sensors   *sensor.Cache
	hub       *hub.Hub
	push      config.PushConfig
	log       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:     d.Store,
		occupancy: d.Occupancy,
		sensors:   d.Sensors,
		hub:       d.Hub,
		push:      d.Push,
		log:       log,
	}
}
