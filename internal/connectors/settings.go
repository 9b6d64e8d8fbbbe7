package connectors

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DefaultSSLMode is applied to database connections that do not set one.
const DefaultSSLMode = "prefer"

// OAuth2Settings is the non-secret configuration of an oauth2 connection.
type OAuth2Settings struct {
	Scopes []string `mapstructure:"scopes" json:"scopes,omitempty"`
}

// APIKeySettings is the non-secret configuration of an api_key connection.
// The key itself lives in the credential payload.
type APIKeySettings struct {
	Label string `mapstructure:"label" json:"label,omitempty"`
}

// DatabaseSettings is the non-secret configuration of a database connection.
// The password lives in the credential payload.
type DatabaseSettings struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Database string `mapstructure:"database" json:"database"`
	Username string `mapstructure:"username" json:"username"`
	SSLMode  string `mapstructure:"ssl_mode" json:"ssl_mode"`
}

// Validate checks the required database fields are present.
func (s *DatabaseSettings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Host) == "" {
		missing = append(missing, "host")
	}
	if s.Port == 0 {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(s.Database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database settings missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DecodeSettings decodes a settings map into the typed struct for one
// connection kind, applying defaults.
func DecodeSettings(raw map[string]any, dest any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dest,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("connectors: build settings decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("connectors: decode settings: %w", err)
	}

	if db, ok := dest.(*DatabaseSettings); ok && strings.TrimSpace(db.SSLMode) == "" {
		db.SSLMode = DefaultSSLMode
	}
	return nil
}
