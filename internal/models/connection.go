package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConnectionType discriminates the four supported connection kinds. The type
// is immutable once a connection is created.
type ConnectionType string

const (
	ConnectionTypeOAuth2         ConnectionType = "oauth2"
	ConnectionTypeAPIKey         ConnectionType = "api_key"
	ConnectionTypeDatabase       ConnectionType = "database"
	ConnectionTypeServiceAccount ConnectionType = "service_account"
)

// Valid reports whether the value is one of the supported connection kinds.
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionTypeOAuth2, ConnectionTypeAPIKey, ConnectionTypeDatabase, ConnectionTypeServiceAccount:
		return true
	}
	return false
}

// ConnectionStatus tracks the lifecycle state of a connection.
type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusExpired ConnectionStatus = "expired"
	ConnectionStatusInvalid ConnectionStatus = "invalid"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
	ConnectionStatusError   ConnectionStatus = "error"
)

// HealthStatus is derived from periodic checks, independent of the lifecycle status.
type HealthStatus string

const (
	HealthStatusUnknown HealthStatus = "unknown"
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusWarning HealthStatus = "warning"
	HealthStatusError   HealthStatus = "error"
)

// Connection represents one tenant's link to one external integration.
type Connection struct {
	BaseModel

	CustomerID     string           `gorm:"type:uuid;not null;index:idx_connections_customer_mcp" json:"customer_id"`
	MCPID          string           `gorm:"column:mcp_id;type:uuid;not null;index:idx_connections_customer_mcp" json:"mcp_id"`
	ConnectionType ConnectionType   `gorm:"not null" json:"connection_type"`
	Status         ConnectionStatus `gorm:"not null;default:pending;index" json:"status"`
	HealthStatus   HealthStatus     `gorm:"not null;default:unknown" json:"health_status"`

	// CredentialsRef points at the encrypted credential record. Secret
	// material is never embedded in the connection row.
	CredentialsRef string `gorm:"type:uuid" json:"credentials_ref,omitempty"`

	// Settings holds non-secret, type-specific configuration such as database
	// host/port or requested OAuth scopes.
	Settings datatypes.JSON `json:"settings,omitempty"`

	ErrorCount       int    `json:"error_count"`
	LastErrorMessage string `json:"last_error_message,omitempty"`

	TotalAPICalls     int64      `gorm:"column:total_api_calls" json:"total_api_calls"`
	LastSuccessfulUse *time.Time `json:"last_successful_use,omitempty"`
	LastHealthCheck   *time.Time `json:"last_health_check,omitempty"`

	// TokenExpiresAt is present only for oauth2 connections.
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`

	Integration *Integration `gorm:"foreignKey:MCPID" json:"integration,omitempty"`
}

// Revoked reports whether the connection has reached its terminal state.
// Revoked connections take no further health or lifecycle transitions.
func (c *Connection) Revoked() bool {
	return c.Status == ConnectionStatusRevoked
}

// BeforeDelete removes the encrypted credential record belonging to this
// connection so hard deletes never leave orphaned secret material behind.
func (c *Connection) BeforeDelete(tx *gorm.DB) error {
	if c.CredentialsRef == "" {
		return nil
	}
	return tx.Where("id = ?", c.CredentialsRef).Delete(&CredentialRecord{}).Error
}
