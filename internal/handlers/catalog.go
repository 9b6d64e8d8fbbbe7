package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/pkg/response"
)

// CatalogHandler exposes the integration catalog for marketplace browsing.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List returns connectable integrations with pagination metadata.
func (h *CatalogHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "100"))

	integrations, total, err := h.catalog.List(c.Request.Context(), services.CatalogListOptions{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	response.SuccessWithMeta(c, http.StatusOK, integrations, &response.Meta{
		Page:       page,
		PerPage:    pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// Get returns one catalog entry.
func (h *CatalogHandler) Get(c *gin.Context) {
	integration, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, integration)
}
