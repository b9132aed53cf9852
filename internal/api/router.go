package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"studyhall-backend/config"
	"studyhall-backend/internal/mw"
)

// Extras are optional endpoints mounted next to the REST API.
type Extras struct {
	// WebSocket serves GET /ws.
	WebSocket gin.HandlerFunc
	// Metrics serves GET /metrics.
	Metrics http.Handler
}

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler, extras Extras) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(h.log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/healthz", h.GetHealth)
	if extras.Metrics != nil {
		r.GET("/metrics", gin.WrapH(extras.Metrics))
	}
	if extras.WebSocket != nil {
		r.GET("/ws", extras.WebSocket)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/layout", caching, h.GetLayout)
		api.GET("/scopes/:label/seats", h.GetScopeSeats)
		api.GET("/scopes/:label/sensors", h.GetScopeSensors)
		api.GET("/sensors", h.GetSensors)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
