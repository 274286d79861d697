package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/eventface/internal/api/handlers"
	"github.com/your-org/eventface/internal/api/ws"
	"github.com/your-org/eventface/internal/auth"
	"github.com/your-org/eventface/internal/ratelimit"
)

type RouterConfig struct {
	OrganizerKey string
	Search       *handlers.SearchHandler
	Media        *handlers.MediaHandler
	System       *handlers.SystemHandler
	Hub          *ws.Hub
	// Limiter caps public searches; nil disables the limit.
	Limiter ratelimit.Limiter
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	r.GET("/healthz", cfg.System.Healthz)
	r.GET("/readyz", cfg.System.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Guests: public, rate limited.
	searchChain := []gin.HandlerFunc{}
	if cfg.Limiter != nil {
		searchChain = append(searchChain, ratelimit.Middleware(cfg.Limiter))
	}
	searchChain = append(searchChain, cfg.Search.Search)
	v1.POST("/events/:eventId/search", searchChain...)

	// Organizers.
	org := v1.Group("", auth.OrganizerKeyMiddleware(cfg.OrganizerKey))
	org.GET("/ws", cfg.Hub.HandleWS)
	org.POST("/events/:eventId/media", cfg.Media.Upload)
	org.POST("/events/:eventId/media/:mediaId/ingest", cfg.Media.Ingest)
	org.DELETE("/events/:eventId/media/:mediaId", cfg.Media.Delete)
	org.GET("/events/:eventId/faces", cfg.Media.CountFaces)

	return r
}
