package api

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/handlers"
)

func registerConnectionRoutes(api *gin.RouterGroup, handler *handlers.ConnectionHandler) {
	connections := api.Group("/connections")
	{
		connections.GET("/", handler.List)
		connections.GET("/:id", handler.Get)
		connections.DELETE("/:id", handler.Delete)
		connections.POST("/:id/test", handler.Test)
		connections.PATCH("/:id/refresh", handler.Refresh)
		connections.POST("/oauth/start", handler.StartOAuth)
		connections.POST("/api-key", handler.CreateAPIKey)
		connections.POST("/database", handler.CreateDatabase)
	}
}
