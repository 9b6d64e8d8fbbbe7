package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, 100, cfg.Server.RateLimit)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "connecthub", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Sweep.Enabled)
	require.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	require.Equal(t, 90, cfg.Sweep.AuditRetentionDays)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9100
  log_level: debug
database:
  driver: postgres
  host: db.internal
  username: connect
  database: connecthub
sweep:
  interval: 2m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 2*time.Minute, cfg.Sweep.Interval)
	// Untouched sections keep their defaults.
	require.Equal(t, "connecthub", cfg.Auth.JWT.Issuer)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("CONNECTHUB_SERVER_PORT", "9200")
	t.Setenv("CONNECTHUB_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestDatabaseSettingsMapping(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     5432,
		Database: "connecthub",
		Username: "connect",
		SSLMode:  "require",
	}}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, "require", settings.SSLMode)
}

func TestApplyRuntimeDefaultsGeneratesSecrets(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, cfg.Auth.JWT.Secret)
	require.Empty(t, cfg.Vault.EncryptionKey)

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.NotEmpty(t, cfg.Vault.EncryptionKey)
	require.True(t, generated["auth.jwt.secret"])
	require.True(t, generated["vault.encryption_key"])

	// Explicit values are left alone.
	again, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, again)
}
