package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modelgrid/connecthub/internal/models"
	"github.com/modelgrid/connecthub/internal/services"
)

func TestSweepHealthProbesActiveConnections(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()
	customerID := uuid.NewString()

	first := fixture.seedIntegration(t, models.ConnectionTypeAPIKey, nil)
	second := fixture.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	_, err := fixture.service.CreateAPIKey(ctx, customerID, services.CreateAPIKeyInput{
		MCPID: first.ID, APIKey: "sk-1",
	})
	require.NoError(t, err)
	unhealthy, err := fixture.service.CreateAPIKey(ctx, customerID, services.CreateAPIKeyInput{
		MCPID: second.ID, APIKey: "sk-2",
	})
	require.NoError(t, err)

	// Break the second connection's probe only.
	fixture.apiKey.err = nil
	result, err := fixture.service.SweepHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.Equal(t, 2, result.Healthy)

	fixture.apiKey.err = errors.New("connection reset")
	result, err = fixture.service.SweepHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.Equal(t, 2, result.Unhealthy)

	refreshed, err := fixture.service.Get(ctx, customerID, unhealthy.ID)
	require.NoError(t, err)
	require.Equal(t, models.HealthStatusError, refreshed.HealthStatus)
	require.Contains(t, fixture.events.names(), services.EventConnectionHealth)
}

func TestSweepHealthLeavesPendingAuthorizationsAlone(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()
	customerID := uuid.NewString()

	integration := fixture.seedOAuthIntegration(t, "https://provider.example/token")
	start, err := fixture.service.StartOAuth(ctx, customerID, integration.ID)
	require.NoError(t, err)

	// Repeated passes while the user is still at the consent screen must not
	// accumulate failures against the credential-less row.
	for i := 0; i < 3; i++ {
		result, err := fixture.service.SweepHealth(ctx)
		require.NoError(t, err)
		require.Zero(t, result.Checked)
	}

	pending, err := fixture.service.Get(ctx, customerID, start.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusPending, pending.Status)
	require.Zero(t, pending.ErrorCount)
	require.Empty(t, pending.LastErrorMessage)
}

func TestSweepHealthExcludesRevokedConnections(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()
	customerID := uuid.NewString()

	integration := fixture.seedIntegration(t, models.ConnectionTypeAPIKey, nil)
	conn, err := fixture.service.CreateAPIKey(ctx, customerID, services.CreateAPIKeyInput{
		MCPID: integration.ID, APIKey: "sk-1",
	})
	require.NoError(t, err)

	require.NoError(t, fixture.db.Model(&models.Connection{}).
		Where("id = ?", conn.ID).
		Update("status", models.ConnectionStatusRevoked).Error)

	fixture.apiKey.err = errors.New("connection reset")
	result, err := fixture.service.SweepHealth(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Checked)

	refreshed, err := fixture.service.Get(ctx, customerID, conn.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusRevoked, refreshed.Status)
}

func TestSweepHealthSkipsServiceAccounts(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	integration := fixture.seedIntegration(t, models.ConnectionTypeServiceAccount, nil)
	conn := models.Connection{
		CustomerID:     uuid.NewString(),
		MCPID:          integration.ID,
		ConnectionType: models.ConnectionTypeServiceAccount,
		Status:         models.ConnectionStatusActive,
		HealthStatus:   models.HealthStatusUnknown,
	}
	require.NoError(t, fixture.db.Create(&conn).Error)

	result, err := fixture.service.SweepHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped)
	require.Zero(t, result.Checked)
}
