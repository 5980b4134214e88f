// Package http wires the REST interface: router, middleware stack and
// server lifecycle.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/internal/interfaces/http/handlers"
	"github.com/eastgrand/geoinsight/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil optional pieces disable their routes.
type RouterConfig struct {
	InsightHandler  *handlers.InsightHandler
	EndpointHandler *handlers.EndpointHandler
	HealthHandler   *handlers.HealthHandler

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// CORSOrigins is the allowed-origin list; empty disables CORS headers.
	CORSOrigins []string

	Logger logging.Logger
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	{
		if cfg.InsightHandler != nil {
			api.POST("/insights/query", cfg.InsightHandler.Query)
			api.GET("/insights/history", cfg.InsightHandler.History)
		}
		if cfg.EndpointHandler != nil {
			api.GET("/endpoints", cfg.EndpointHandler.List)
		}
	}

	return r
}
