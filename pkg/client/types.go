package client

import "time"

// ConnectionType discriminates the four supported connection kinds.
type ConnectionType string

const (
	TypeOAuth2         ConnectionType = "oauth2"
	TypeAPIKey         ConnectionType = "api_key"
	TypeDatabase       ConnectionType = "database"
	TypeServiceAccount ConnectionType = "service_account"
)

// Connection lifecycle statuses.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusInvalid = "invalid"
	StatusRevoked = "revoked"
	StatusError   = "error"
)

// Connection is the store's view of one tenant-integration link.
type Connection struct {
	ID               string         `json:"id"`
	CustomerID       string         `json:"customer_id"`
	MCPID            string         `json:"mcp_id"`
	ConnectionType   ConnectionType `json:"connection_type"`
	Status           string         `json:"status"`
	HealthStatus     string         `json:"health_status"`
	Settings         map[string]any `json:"settings,omitempty"`
	ErrorCount       int            `json:"error_count"`
	LastErrorMessage string         `json:"last_error_message,omitempty"`
	TotalAPICalls    int64          `json:"total_api_calls"`

	LastSuccessfulUse *time.Time `json:"last_successful_use,omitempty"`
	LastHealthCheck   *time.Time `json:"last_health_check,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Integration *Integration `json:"integration,omitempty"`
}

// Revoked reports whether the connection is in its terminal state.
func (c *Connection) Revoked() bool {
	return c.Status == StatusRevoked
}

// Integration is a catalog definition of a connectable service.
type Integration struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	DisplayName    string          `json:"display_name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags,omitempty"`
	IconURL        string          `json:"icon_url,omitempty"`
	ConnectionType *ConnectionType `json:"connection_type,omitempty"`
}

// Connectable reports whether the definition offers a connection flow.
func (i *Integration) Connectable() bool {
	return i.ConnectionType != nil && *i.ConnectionType != ""
}

// TestResult is the outcome of a store-side connectivity test.
type TestResult struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// OAuthStart describes a freshly initiated authorization-code flow.
type OAuthStart struct {
	ConnectionID     string `json:"connection_id"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// APIKeyRequest is the payload for creating an api_key connection.
type APIKeyRequest struct {
	MCPID     string `json:"mcp_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
	Label     string `json:"label,omitempty"`
}

// DatabaseRequest is the payload for creating a database connection.
type DatabaseRequest struct {
	MCPID    string `json:"mcp_id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}
