package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/monitoring"
	"github.com/modelgrid/connecthub/pkg/response"
)

// HealthHandler reports dependency health for load balancers and operators.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Check runs all registered probes. A degraded report still returns 200 so
// orchestrators can distinguish "up but unhappy" from "down".
func (h *HealthHandler) Check(c *gin.Context) {
	overall, checks := h.manager.Report(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{
		"status": overall,
		"checks": checks,
	})
}
