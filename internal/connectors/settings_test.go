package connectors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDatabaseSettingsAppliesDefaultSSLMode(t *testing.T) {
	var settings DatabaseSettings
	err := DecodeSettings(map[string]any{
		"host":     "db.internal",
		"port":     5432,
		"database": "warehouse",
		"username": "analyst",
	}, &settings)
	require.NoError(t, err)
	require.Equal(t, "prefer", settings.SSLMode)
}

func TestDecodeDatabaseSettingsWeakTyping(t *testing.T) {
	// Ports arrive as JSON numbers (float64) or strings depending on the caller.
	var settings DatabaseSettings
	err := DecodeSettings(map[string]any{
		"host": "db.internal",
		"port": "5432",
	}, &settings)
	require.NoError(t, err)
	require.Equal(t, 5432, settings.Port)

	err = DecodeSettings(map[string]any{"port": float64(3306)}, &settings)
	require.NoError(t, err)
	require.Equal(t, 3306, settings.Port)
}

func TestDatabaseSettingsValidateListsMissingFields(t *testing.T) {
	settings := DatabaseSettings{Host: "db.internal"}
	err := settings.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "port")
	require.Contains(t, err.Error(), "database")
	require.Contains(t, err.Error(), "username")
	require.NotContains(t, err.Error(), "host")

	settings = DatabaseSettings{Host: "db.internal", Port: 5432, Database: "warehouse", Username: "analyst"}
	require.NoError(t, settings.Validate())
}

func TestDecodeOAuth2SettingsScopes(t *testing.T) {
	var settings OAuth2Settings
	err := DecodeSettings(map[string]any{"scopes": []any{"read", "write"}}, &settings)
	require.NoError(t, err)
	require.Equal(t, []string{"read", "write"}, settings.Scopes)
}
