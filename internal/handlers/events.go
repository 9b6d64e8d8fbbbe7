package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/realtime"
	"github.com/modelgrid/connecthub/pkg/response"
)

// EventsHandler upgrades authenticated requests to the realtime event stream.
type EventsHandler struct {
	hub *realtime.Hub
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream serves the websocket connection for the tenant.
func (h *EventsHandler) Stream(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.hub.Serve(tenant, c.Writer, c.Request)
}
