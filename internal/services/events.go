package services

import "github.com/modelgrid/connecthub/internal/models"

// Event names published when connection records change.
const (
	EventConnectionCreated   = "connection.created"
	EventConnectionActivated = "connection.activated"
	EventConnectionTested    = "connection.tested"
	EventConnectionRefreshed = "connection.refreshed"
	EventConnectionDeleted   = "connection.deleted"
	EventConnectionHealth    = "connection.health"
)

// ConnectionEvent is the payload delivered to realtime subscribers.
type ConnectionEvent struct {
	Event      string             `json:"event"`
	Connection *models.Connection `json:"connection,omitempty"`
	MCPID      string             `json:"mcp_id,omitempty"`
}

// EventPublisher delivers connection lifecycle events to interested
// subscribers, scoped per customer.
type EventPublisher interface {
	PublishConnectionEvent(customerID string, event ConnectionEvent)
}

// noopPublisher discards events. Used when no realtime hub is wired.
type noopPublisher struct{}

func (noopPublisher) PublishConnectionEvent(string, ConnectionEvent) {}
