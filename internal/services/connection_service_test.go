package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/modelgrid/connecthub/pkg/errors"

	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/connectors"
	"github.com/modelgrid/connecthub/internal/database/testutil"
	"github.com/modelgrid/connecthub/internal/models"
	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/internal/vault"
)

type stubDriver struct {
	mu   sync.Mutex
	kind models.ConnectionType
	err  error
	last connectors.TestInput
}

func (d *stubDriver) Type() models.ConnectionType { return d.kind }

func (d *stubDriver) Test(_ context.Context, in connectors.TestInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = in
	return d.err
}

func (d *stubDriver) lastInput() connectors.TestInput {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

type capturePublisher struct {
	mu     sync.Mutex
	events []services.ConnectionEvent
}

func (p *capturePublisher) PublishConnectionEvent(_ string, event services.ConnectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, event := range p.events {
		out[i] = event.Event
	}
	return out
}

type serviceFixture struct {
	db        *gorm.DB
	service   *services.ConnectionService
	vault     *vault.Store
	apiKey    *stubDriver
	databases *stubDriver
	events    *capturePublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	crypto, err := vault.NewCrypto([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	credStore, err := vault.NewStore(db, crypto)
	require.NoError(t, err)

	apiKeyDriver := &stubDriver{kind: models.ConnectionTypeAPIKey}
	databaseDriver := &stubDriver{kind: models.ConnectionTypeDatabase}

	registry := connectors.NewRegistry()
	registry.MustRegister(apiKeyDriver)
	registry.MustRegister(databaseDriver)
	registry.MustRegister(connectors.NewOAuth2Driver(nil))
	registry.MustRegister(connectors.NewServiceAccountDriver())

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	events := &capturePublisher{}

	service, err := services.NewConnectionService(services.ConnectionServiceDeps{
		DB:               db,
		Vault:            credStore,
		Registry:         registry,
		OAuth:            connectors.NewOAuth2Driver(nil),
		Cache:            cache.NewDatabaseStore(db),
		Audit:            audit,
		Events:           events,
		OAuthRedirectURL: "http://localhost:8000/api/connections/oauth/callback",
	})
	require.NoError(t, err)

	return &serviceFixture{
		db:        db,
		service:   service,
		vault:     credStore,
		apiKey:    apiKeyDriver,
		databases: databaseDriver,
		events:    events,
	}
}

func (f *serviceFixture) seedIntegration(t *testing.T, kind models.ConnectionType, mutate func(*models.Integration)) models.Integration {
	t.Helper()

	integration := models.Integration{
		Name:           "it-" + uuid.NewString(),
		DisplayName:    "Test Integration",
		Category:       "testing",
		ConnectionType: &kind,
	}
	if mutate != nil {
		mutate(&integration)
	}
	require.NoError(t, f.db.Create(&integration).Error)
	return integration
}

func TestCreateAPIKeyConnection(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live_abc",
		Label:  "prod",
	})
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusActive, conn.Status)
	require.Equal(t, models.HealthStatusHealthy, conn.HealthStatus)
	require.NotEmpty(t, conn.CredentialsRef)
	require.EqualValues(t, 1, conn.TotalAPICalls)

	// The key was probed before persisting.
	var probed connectors.APIKeyCredentials
	require.NoError(t, json.Unmarshal(f.apiKey.lastInput().Credentials, &probed))
	require.Equal(t, "sk_live_abc", probed.APIKey)

	// Credentials are sealed, never stored on the row.
	var stored connectors.APIKeyCredentials
	require.NoError(t, f.vault.Get(context.Background(), conn.CredentialsRef, &stored))
	require.Equal(t, "sk_live_abc", stored.APIKey)

	var record models.CredentialRecord
	require.NoError(t, f.db.First(&record, "id = ?", conn.CredentialsRef).Error)
	require.NotContains(t, record.Ciphertext, "sk_live_abc")

	require.Contains(t, f.events.names(), services.EventConnectionCreated)
}

func TestCreateAPIKeyRejectsFailedProbe(t *testing.T) {
	f := newServiceFixture(t)
	f.apiKey.err = errors.New("probe stripe: unexpected status 401")
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	_, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_bad",
	})
	require.Error(t, err)

	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrConnectionTestFailed.Code, appErr.Code)
	require.Contains(t, appErr.Message, "unexpected status 401")

	// Nothing was persisted.
	var count int64
	require.NoError(t, f.db.Model(&models.Connection{}).Where("customer_id = ?", customer).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateAPIKeyEnforcesSingleActiveConnection(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	_, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_one",
	})
	require.NoError(t, err)

	_, err = f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_two",
	})
	require.ErrorIs(t, err, apperrors.ErrConnectionExists)

	// A different tenant is unaffected.
	_, err = f.service.CreateAPIKey(context.Background(), uuid.NewString(), services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_three",
	})
	require.NoError(t, err)
}

func TestCreateDatabaseValidatesAndDefaultsSSLMode(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeDatabase, func(i *models.Integration) {
		i.DatabaseDriver = "postgres"
	})

	_, err := f.service.CreateDatabase(context.Background(), customer, services.CreateDatabaseInput{
		MCPID: integration.ID,
		Host:  "db.internal",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "port")
	require.Contains(t, err.Error(), "username")

	conn, err := f.service.CreateDatabase(context.Background(), customer, services.CreateDatabaseInput{
		MCPID:    integration.ID,
		Host:     "db.internal",
		Port:     5432,
		Database: "warehouse",
		Username: "analyst",
		Password: "secret",
	})
	require.NoError(t, err)

	var settings connectors.DatabaseSettings
	require.NoError(t, json.Unmarshal(conn.Settings, &settings))
	require.Equal(t, "prefer", settings.SSLMode)

	var creds connectors.DatabaseCredentials
	require.NoError(t, f.vault.Get(context.Background(), conn.CredentialsRef, &creds))
	require.Equal(t, "secret", creds.Password)
}

func TestCreateRejectsMismatchedConnectionType(t *testing.T) {
	f := newServiceFixture(t)
	integration := f.seedIntegration(t, models.ConnectionTypeDatabase, nil)

	_, err := f.service.CreateAPIKey(context.Background(), uuid.NewString(), services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_x",
	})
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrUnsupportedConnectionType.Code, appErr.Code)
}

func TestServiceAccountHasNoCreationFlow(t *testing.T) {
	f := newServiceFixture(t)
	integration := f.seedIntegration(t, models.ConnectionTypeServiceAccount, nil)

	_, err := f.service.CreateAPIKey(context.Background(), uuid.NewString(), services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_x",
	})
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrUnsupportedConnectionType.Code, appErr.Code)
}

func TestTestRecordsTelemetry(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live",
	})
	require.NoError(t, err)

	outcome, err := f.service.Test(context.Background(), customer, conn.ID)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.EqualValues(t, 2, outcome.Connection.TotalAPICalls)
	require.NotNil(t, outcome.Connection.LastSuccessfulUse)

	// Now make the probe fail and observe the failure telemetry.
	f.apiKey.err = errors.New("connection reset")
	outcome, err = f.service.Test(context.Background(), customer, conn.ID)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Equal(t, "connection reset", outcome.Message)
	require.Equal(t, models.HealthStatusError, outcome.Connection.HealthStatus)
	require.Equal(t, 1, outcome.Connection.ErrorCount)
	require.Equal(t, "connection reset", outcome.Connection.LastErrorMessage)
}

func TestRevokedConnectionIsTerminal(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live",
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Connection{}).
		Where("id = ?", conn.ID).
		Update("status", models.ConnectionStatusRevoked).Error)

	_, err = f.service.Test(context.Background(), customer, conn.ID)
	require.ErrorIs(t, err, apperrors.ErrConnectionRevoked)

	_, err = f.service.RefreshToken(context.Background(), customer, conn.ID)
	require.ErrorIs(t, err, apperrors.ErrConnectionRevoked)

	// Deletion is still allowed for cleanup.
	require.NoError(t, f.service.Delete(context.Background(), customer, conn.ID))
}

func TestDeleteRemovesCredentialRecord(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), customer, conn.ID))

	_, err = f.service.Get(context.Background(), customer, conn.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.CredentialRecord{}).Where("id = ?", conn.CredentialsRef).Count(&count).Error)
	require.Zero(t, count)
}

func TestTenantIsolation(t *testing.T) {
	f := newServiceFixture(t)
	owner := uuid.NewString()
	other := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), owner, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live",
	})
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), other, conn.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.service.Delete(context.Background(), other, conn.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "token-" + r.PostFormValue("grant_type"),
			"token_type":    "bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
}

func (f *serviceFixture) seedOAuthIntegration(t *testing.T, tokenURL string) models.Integration {
	return f.seedIntegration(t, models.ConnectionTypeOAuth2, func(i *models.Integration) {
		i.OAuthAuthURL = "https://provider.example/authorize"
		i.OAuthTokenURL = tokenURL
		i.OAuthClientID = "client-1"
		i.OAuthSecret = "secret-1"
		i.OAuthScopes = datatypes.JSON(`["read","write"]`)
	})
}

func TestOAuthFlow(t *testing.T) {
	f := newServiceFixture(t)
	tokenServer := newTokenServer(t)
	defer tokenServer.Close()

	customer := uuid.NewString()
	integration := f.seedOAuthIntegration(t, tokenServer.URL)

	start, err := f.service.StartOAuth(context.Background(), customer, integration.ID)
	require.NoError(t, err)
	require.NotEmpty(t, start.State)
	require.Contains(t, start.AuthorizationURL, "https://provider.example/authorize")
	require.Contains(t, start.AuthorizationURL, "state="+start.State)

	pending, err := f.service.Get(context.Background(), customer, start.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusPending, pending.Status)

	conn, err := f.service.CompleteOAuth(context.Background(), start.State, "auth-code-1")
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusActive, conn.Status)
	require.Equal(t, models.HealthStatusHealthy, conn.HealthStatus)
	require.NotNil(t, conn.TokenExpiresAt)
	require.WithinDuration(t, time.Now().Add(time.Hour), *conn.TokenExpiresAt, time.Minute)

	var creds connectors.OAuthCredentials
	require.NoError(t, f.vault.Get(context.Background(), conn.CredentialsRef, &creds))
	require.Equal(t, "token-authorization_code", creds.AccessToken)
	require.Equal(t, "refresh-1", creds.RefreshToken)

	// The state nonce is single use.
	_, err = f.service.CompleteOAuth(context.Background(), start.State, "auth-code-1")
	require.ErrorIs(t, err, apperrors.ErrOAuthStateInvalid)
}

func TestCompleteOAuthRejectsRevokedConnection(t *testing.T) {
	f := newServiceFixture(t)
	tokenServer := newTokenServer(t)
	defer tokenServer.Close()

	customer := uuid.NewString()
	integration := f.seedOAuthIntegration(t, tokenServer.URL)

	start, err := f.service.StartOAuth(context.Background(), customer, integration.ID)
	require.NoError(t, err)

	// Revoked between the start of the flow and the provider callback.
	require.NoError(t, f.db.Model(&models.Connection{}).
		Where("id = ?", start.ConnectionID).
		Update("status", models.ConnectionStatusRevoked).Error)

	_, err = f.service.CompleteOAuth(context.Background(), start.State, "auth-code-1")
	require.ErrorIs(t, err, apperrors.ErrConnectionRevoked)

	conn, err := f.service.Get(context.Background(), customer, start.ConnectionID)
	require.NoError(t, err)
	require.Equal(t, models.ConnectionStatusRevoked, conn.Status)
	require.Empty(t, conn.CredentialsRef)
}

func TestCompleteOAuthRejectsUnknownState(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.CompleteOAuth(context.Background(), "no-such-state", "code")
	require.ErrorIs(t, err, apperrors.ErrOAuthStateInvalid)
}

func TestRefreshTokenKeepsCredentialRef(t *testing.T) {
	f := newServiceFixture(t)
	tokenServer := newTokenServer(t)
	defer tokenServer.Close()

	customer := uuid.NewString()
	integration := f.seedOAuthIntegration(t, tokenServer.URL)

	start, err := f.service.StartOAuth(context.Background(), customer, integration.ID)
	require.NoError(t, err)
	conn, err := f.service.CompleteOAuth(context.Background(), start.State, "auth-code-1")
	require.NoError(t, err)

	originalRef := conn.CredentialsRef
	refreshed, err := f.service.RefreshToken(context.Background(), customer, conn.ID)
	require.NoError(t, err)
	require.Equal(t, originalRef, refreshed.CredentialsRef)

	var creds connectors.OAuthCredentials
	require.NoError(t, f.vault.Get(context.Background(), originalRef, &creds))
	require.Equal(t, "token-refresh_token", creds.AccessToken)
}

func TestRefreshTokenRejectsNonOAuthConnections(t *testing.T) {
	f := newServiceFixture(t)
	customer := uuid.NewString()
	integration := f.seedIntegration(t, models.ConnectionTypeAPIKey, nil)

	conn, err := f.service.CreateAPIKey(context.Background(), customer, services.CreateAPIKeyInput{
		MCPID:  integration.ID,
		APIKey: "sk_live",
	})
	require.NoError(t, err)

	_, err = f.service.RefreshToken(context.Background(), customer, conn.ID)
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrUnsupportedConnectionType.Code, appErr.Code)
}
