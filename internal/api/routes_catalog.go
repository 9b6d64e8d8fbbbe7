package api

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/handlers"
)

func registerCatalogRoutes(api *gin.RouterGroup, handler *handlers.CatalogHandler) {
	mcps := api.Group("/mcps")
	{
		mcps.GET("/", handler.List)
		mcps.GET("/:id", handler.Get)
	}
}
