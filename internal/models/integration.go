package models

import (
	"gorm.io/datatypes"
)

// Integration is a catalog entry describing a connectable third-party service
// or a bundled capability. Entries without a connection type are bundled
// capabilities: they exist in the catalog but are excluded from the
// marketplace because nothing can be connected to them.
type Integration struct {
	BaseModel

	Name        string         `gorm:"not null;uniqueIndex" json:"name"`
	DisplayName string         `gorm:"not null" json:"display_name"`
	Description string         `json:"description"`
	Category    string         `gorm:"index" json:"category"`
	Tags        datatypes.JSON `json:"tags,omitempty"`
	IconURL     string         `json:"icon_url,omitempty"`

	// ConnectionType is nil for bundled capabilities.
	ConnectionType *ConnectionType `json:"connection_type,omitempty"`

	// PingURL is probed with the stored credential to verify connectivity for
	// api_key and oauth2 connections.
	PingURL string `json:"ping_url,omitempty"`

	// AuthHeader names the header carrying an API key; empty means a standard
	// Authorization bearer header.
	AuthHeader string `json:"auth_header,omitempty"`

	// OAuth provider settings, used only when ConnectionType is oauth2.
	OAuthAuthURL  string         `json:"oauth_auth_url,omitempty"`
	OAuthTokenURL string         `json:"oauth_token_url,omitempty"`
	OAuthIssuer   string         `json:"oauth_issuer,omitempty"`
	OAuthClientID string         `json:"oauth_client_id,omitempty"`
	OAuthSecret   string         `json:"-"`
	OAuthScopes   datatypes.JSON `json:"oauth_scopes,omitempty"`

	// DatabaseDriver selects the SQL driver used to probe database
	// connections: "postgres" or "mysql".
	DatabaseDriver string `json:"database_driver,omitempty"`
}

// Connectable reports whether the integration can appear in the marketplace.
func (i *Integration) Connectable() bool {
	return i.ConnectionType != nil && *i.ConnectionType != ""
}
