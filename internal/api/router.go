package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/modelgrid/connecthub/internal/auth"
	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/handlers"
	"github.com/modelgrid/connecthub/internal/middleware"
	"github.com/modelgrid/connecthub/internal/monitoring"
	"github.com/modelgrid/connecthub/internal/realtime"
	"github.com/modelgrid/connecthub/internal/services"
)

// Dependencies bundles everything the router needs.
type Dependencies struct {
	JWT         *iauth.JWTService
	Connections *services.ConnectionService
	Catalog     *services.CatalogService
	Audit       *services.AuditService
	Cache       cache.Store
	Hub         *realtime.Hub
	Health      *monitoring.HealthManager

	// RateLimit is requests per minute per client and path; zero disables it.
	RateLimit int
}

// NewRouter builds the Gin engine, wires middleware, and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Connections == nil {
		return nil, fmt.Errorf("connection service must be provided")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if deps.RateLimit > 0 {
		r.Use(middleware.RateLimit(deps.Cache, deps.RateLimit, time.Minute))
	}

	if deps.Health != nil {
		r.GET("/health", handlers.NewHealthHandler(deps.Health).Check)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	connectionHandler := handlers.NewConnectionHandler(deps.Connections)

	// The provider redirects the browser here without a bearer token; the
	// tenant is recovered from the state nonce.
	r.GET("/api/connections/oauth/callback", connectionHandler.OAuthCallback)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerConnectionRoutes(api, connectionHandler)
	registerCatalogRoutes(api, handlers.NewCatalogHandler(deps.Catalog))

	if deps.Audit != nil {
		api.GET("/audit", handlers.NewAuditHandler(deps.Audit).List)
	}
	if deps.Hub != nil {
		api.GET("/events", handlers.NewEventsHandler(deps.Hub).Stream)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
