package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/pkg/response"
)

// AuditHandler exposes the tenant's audit trail.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns the tenant's audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	logs, total, err := h.audit.List(c.Request.Context(), services.AuditListOptions{
		CustomerID: tenant,
		Action:     c.Query("action"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:    page,
		PerPage: pageSize,
		Total:   int(total),
	})
}
