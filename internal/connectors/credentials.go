package connectors

import (
	"encoding/json"
	"fmt"
	"time"
)

// APIKeyCredentials is the secret payload of an api_key connection.
type APIKeyCredentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
}

// DatabaseCredentials is the secret payload of a database connection.
type DatabaseCredentials struct {
	Password string `json:"password"`
}

// OAuthCredentials is the secret payload of an oauth2 connection.
type OAuthCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token's lifetime has elapsed.
func (c *OAuthCredentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func decodeCredentials(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return fmt.Errorf("connectors: credential payload is empty")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("connectors: decode credential payload: %w", err)
	}
	return nil
}
