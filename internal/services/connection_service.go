package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/modelgrid/connecthub/pkg/errors"
	"github.com/modelgrid/connecthub/pkg/logger"
	"github.com/modelgrid/connecthub/pkg/metrics"

	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/connectors"
	"github.com/modelgrid/connecthub/internal/models"
	"github.com/modelgrid/connecthub/internal/vault"
)

const (
	oauthStateTTL      = 10 * time.Minute
	oauthStateKeyspace = "oauth:state:"
)

// ConnectionServiceDeps bundles the collaborators the connection service needs.
type ConnectionServiceDeps struct {
	DB       *gorm.DB
	Vault    *vault.Store
	Registry *connectors.Registry
	OAuth    *connectors.OAuth2Driver
	Cache    cache.Store
	Audit    *AuditService
	Events   EventPublisher

	// OAuthRedirectURL is the callback URL registered with providers.
	OAuthRedirectURL string

	// Now is swappable for tests and defaults to time.Now.
	Now func() time.Time
}

// ConnectionService owns the lifecycle of connection records: creation for
// each connection kind, connectivity testing, token refresh, and deletion.
type ConnectionService struct {
	db          *gorm.DB
	vault       *vault.Store
	registry    *connectors.Registry
	oauth       *connectors.OAuth2Driver
	cache       cache.Store
	audit       *AuditService
	events      EventPublisher
	redirectURL string
	now         func() time.Time
	log         *zap.Logger
}

// NewConnectionService constructs the service, validating its dependencies.
func NewConnectionService(deps ConnectionServiceDeps) (*ConnectionService, error) {
	if deps.DB == nil {
		return nil, errors.New("connection service: db is required")
	}
	if deps.Vault == nil {
		return nil, errors.New("connection service: vault store is required")
	}
	if deps.Registry == nil {
		deps.Registry = connectors.DefaultRegistry()
	}
	if deps.OAuth == nil {
		deps.OAuth = connectors.NewOAuth2Driver(nil)
	}
	if deps.Cache == nil {
		return nil, errors.New("connection service: cache store is required")
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &ConnectionService{
		db:          deps.DB,
		vault:       deps.Vault,
		registry:    deps.Registry,
		oauth:       deps.OAuth,
		cache:       deps.Cache,
		audit:       deps.Audit,
		events:      deps.Events,
		redirectURL: deps.OAuthRedirectURL,
		now:         deps.Now,
		log:         logger.WithComponent("connections"),
	}, nil
}

// List returns the tenant's connections, newest first, with catalog data
// preloaded for display.
func (s *ConnectionService) List(ctx context.Context, customerID string) ([]models.Connection, error) {
	ctx = ensureContext(ctx)

	var results []models.Connection
	err := s.db.WithContext(ctx).
		Preload("Integration").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("connection service: list connections: %w", err)
	}
	return results, nil
}

// Get loads a single connection owned by the tenant.
func (s *ConnectionService) Get(ctx context.Context, customerID, id string) (*models.Connection, error) {
	ctx = ensureContext(ctx)

	var conn models.Connection
	err := s.db.WithContext(ctx).
		Preload("Integration").
		Where("customer_id = ? AND id = ?", customerID, id).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("connection service: load connection: %w", err)
	}
	return &conn, nil
}

// CreateAPIKeyInput carries the payload of an api_key connection request.
type CreateAPIKeyInput struct {
	MCPID     string `json:"mcp_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret,omitempty"`
	Label     string `json:"label,omitempty"`
}

// CreateAPIKey validates and stores an api_key connection. The key is probed
// against the integration's ping endpoint before anything is persisted; a
// failing probe rejects the whole request.
func (s *ConnectionService) CreateAPIKey(ctx context.Context, customerID string, input CreateAPIKeyInput) (*models.Connection, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.APIKey) == "" {
		return nil, apperrors.NewBadRequest("api_key is required")
	}

	integration, err := s.connectableIntegration(ctx, customerID, input.MCPID, models.ConnectionTypeAPIKey)
	if err != nil {
		return nil, err
	}

	creds := connectors.APIKeyCredentials{
		APIKey:    strings.TrimSpace(input.APIKey),
		APISecret: strings.TrimSpace(input.APISecret),
	}
	settings := connectors.APIKeySettings{Label: strings.TrimSpace(input.Label)}

	if err := s.probe(ctx, *integration, settings, creds); err != nil {
		metrics.ConnectionTests.WithLabelValues(string(models.ConnectionTypeAPIKey), "fail").Inc()
		return nil, apperrors.ErrConnectionTestFailed.WithMessage(err.Error())
	}
	metrics.ConnectionTests.WithLabelValues(string(models.ConnectionTypeAPIKey), "pass").Inc()

	return s.persistTested(ctx, customerID, integration, models.ConnectionTypeAPIKey, settings, creds, nil)
}

// CreateDatabaseInput carries the payload of a database connection request.
type CreateDatabaseInput struct {
	MCPID    string `json:"mcp_id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

// CreateDatabase validates and stores a database connection. Required fields
// are checked up front, the SSL mode defaults when omitted, and the database
// is dialed before anything is persisted.
func (s *ConnectionService) CreateDatabase(ctx context.Context, customerID string, input CreateDatabaseInput) (*models.Connection, error) {
	ctx = ensureContext(ctx)

	settings := connectors.DatabaseSettings{
		Host:     strings.TrimSpace(input.Host),
		Port:     input.Port,
		Database: strings.TrimSpace(input.Database),
		Username: strings.TrimSpace(input.Username),
		SSLMode:  strings.TrimSpace(input.SSLMode),
	}
	if settings.SSLMode == "" {
		settings.SSLMode = connectors.DefaultSSLMode
	}
	if err := settings.Validate(); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	integration, err := s.connectableIntegration(ctx, customerID, input.MCPID, models.ConnectionTypeDatabase)
	if err != nil {
		return nil, err
	}

	creds := connectors.DatabaseCredentials{Password: input.Password}

	if err := s.probe(ctx, *integration, settings, creds); err != nil {
		metrics.ConnectionTests.WithLabelValues(string(models.ConnectionTypeDatabase), "fail").Inc()
		return nil, apperrors.ErrConnectionTestFailed.WithMessage(err.Error())
	}
	metrics.ConnectionTests.WithLabelValues(string(models.ConnectionTypeDatabase), "pass").Inc()

	return s.persistTested(ctx, customerID, integration, models.ConnectionTypeDatabase, settings, creds, nil)
}

// OAuthStart describes a freshly initiated authorization-code flow.
type OAuthStart struct {
	ConnectionID     string `json:"connection_id"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type oauthStatePayload struct {
	CustomerID   string `json:"customer_id"`
	ConnectionID string `json:"connection_id"`
	MCPID        string `json:"mcp_id"`
}

// StartOAuth creates a pending oauth2 connection and returns the provider
// authorization URL. The state nonce is held in the cache for a bounded
// window; callbacks arriving after it expires are rejected.
func (s *ConnectionService) StartOAuth(ctx context.Context, customerID, mcpID string) (*OAuthStart, error) {
	ctx = ensureContext(ctx)

	integration, err := s.connectableIntegration(ctx, customerID, mcpID, models.ConnectionTypeOAuth2)
	if err != nil {
		return nil, err
	}

	scopes, err := integrationScopes(integration)
	if err != nil {
		return nil, err
	}

	// A restarted flow replaces any earlier pending attempt for the same
	// integration rather than accumulating abandoned rows.
	err = s.db.WithContext(ctx).
		Where("customer_id = ? AND mcp_id = ? AND status = ?", customerID, mcpID, models.ConnectionStatusPending).
		Delete(&models.Connection{}).Error
	if err != nil {
		return nil, fmt.Errorf("connection service: clear pending flow: %w", err)
	}

	settings, err := settingsJSON(connectors.OAuth2Settings{Scopes: scopes})
	if err != nil {
		return nil, err
	}

	conn := models.Connection{
		CustomerID:     customerID,
		MCPID:          mcpID,
		ConnectionType: models.ConnectionTypeOAuth2,
		Status:         models.ConnectionStatusPending,
		HealthStatus:   models.HealthStatusUnknown,
		Settings:       settings,
	}
	if err := s.db.WithContext(ctx).Create(&conn).Error; err != nil {
		return nil, fmt.Errorf("connection service: create pending connection: %w", err)
	}

	state := uuid.NewString()
	payload, err := json.Marshal(oauthStatePayload{
		CustomerID:   customerID,
		ConnectionID: conn.ID,
		MCPID:        mcpID,
	})
	if err != nil {
		return nil, fmt.Errorf("connection service: encode state payload: %w", err)
	}
	if err := s.cache.Set(ctx, oauthStateKeyspace+state, payload, oauthStateTTL); err != nil {
		return nil, fmt.Errorf("connection service: store state nonce: %w", err)
	}

	authURL, err := s.oauth.AuthCodeURL(ctx, *integration, scopes, s.redirectURL, state)
	if err != nil {
		return nil, apperrors.ErrConnectionTestFailed.WithMessage(err.Error())
	}

	s.recordAudit(ctx, customerID, "connection.oauth_started", conn.ID, map[string]any{
		"mcp_id": mcpID,
	})
	s.events.PublishConnectionEvent(customerID, ConnectionEvent{
		Event:      EventConnectionCreated,
		Connection: &conn,
		MCPID:      mcpID,
	})

	return &OAuthStart{
		ConnectionID:     conn.ID,
		AuthorizationURL: authURL,
		State:            state,
	}, nil
}

// CompleteOAuth finishes the authorization-code flow: it validates the state
// nonce, exchanges the code for tokens, seals them in the vault, and
// activates the pending connection.
func (s *ConnectionService) CompleteOAuth(ctx context.Context, state, code string) (*models.Connection, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(state) == "" || strings.TrimSpace(code) == "" {
		return nil, apperrors.ErrOAuthStateInvalid
	}

	raw, found, err := s.cache.Get(ctx, oauthStateKeyspace+state)
	if err != nil {
		return nil, fmt.Errorf("connection service: load state nonce: %w", err)
	}
	if !found {
		return nil, apperrors.ErrOAuthStateInvalid
	}

	var payload oauthStatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperrors.ErrOAuthStateInvalid
	}

	// The nonce is single use regardless of how the exchange turns out.
	if err := s.cache.Delete(ctx, oauthStateKeyspace+state); err != nil {
		s.log.Warn("failed to invalidate oauth state nonce", zap.Error(err))
	}

	conn, err := s.Get(ctx, payload.CustomerID, payload.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.Revoked() {
		// A late provider callback must not resurrect a revoked connection.
		return nil, apperrors.ErrConnectionRevoked
	}
	if conn.Integration == nil {
		return nil, apperrors.ErrNotFound
	}

	var settings connectors.OAuth2Settings
	if err := decodeStoredSettings(conn.Settings, &settings); err != nil {
		return nil, err
	}

	creds, err := s.oauth.Exchange(ctx, *conn.Integration, settings.Scopes, s.redirectURL, code)
	if err != nil {
		s.markFailure(ctx, conn, err)
		return nil, apperrors.ErrConnectionTestFailed.WithMessage(err.Error())
	}

	ref, err := s.vault.Put(ctx, conn.CustomerID, creds)
	if err != nil {
		return nil, fmt.Errorf("connection service: store credentials: %w", err)
	}

	now := s.now()
	conn.CredentialsRef = ref
	conn.Status = models.ConnectionStatusActive
	conn.HealthStatus = models.HealthStatusHealthy
	conn.LastHealthCheck = &now
	conn.ErrorCount = 0
	conn.LastErrorMessage = ""
	if !creds.ExpiresAt.IsZero() {
		expiresAt := creds.ExpiresAt
		conn.TokenExpiresAt = &expiresAt
	}

	if err := s.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, fmt.Errorf("connection service: activate connection: %w", err)
	}

	s.recordAudit(ctx, conn.CustomerID, "connection.oauth_completed", conn.ID, map[string]any{
		"mcp_id": conn.MCPID,
	})
	s.events.PublishConnectionEvent(conn.CustomerID, ConnectionEvent{
		Event:      EventConnectionActivated,
		Connection: conn,
		MCPID:      conn.MCPID,
	})

	return conn, nil
}

// TestOutcome reports the result of a connectivity test along with the
// updated connection record.
type TestOutcome struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Connection *models.Connection `json:"connection"`
}

// Test runs the connection's driver probe and records the outcome on the
// record. Revoked connections are terminal and cannot be tested.
func (s *ConnectionService) Test(ctx context.Context, customerID, id string) (*TestOutcome, error) {
	ctx = ensureContext(ctx)

	conn, err := s.Get(ctx, customerID, id)
	if err != nil {
		return nil, err
	}
	if conn.Revoked() {
		return nil, apperrors.ErrConnectionRevoked
	}

	outcome, err := s.runTest(ctx, conn)
	if err != nil {
		return nil, err
	}

	s.events.PublishConnectionEvent(customerID, ConnectionEvent{
		Event:      EventConnectionTested,
		Connection: conn,
		MCPID:      conn.MCPID,
	})
	return outcome, nil
}

// runTest executes the driver probe for an already loaded connection and
// persists the telemetry. The sweep shares this path with the user-facing
// test operation.
func (s *ConnectionService) runTest(ctx context.Context, conn *models.Connection) (*TestOutcome, error) {
	driver, err := s.registry.Resolve(conn.ConnectionType)
	if err != nil {
		return nil, apperrors.ErrUnsupportedConnectionType.WithInternal(err)
	}

	input := connectors.TestInput{Settings: map[string]any{}}
	if conn.Integration != nil {
		input.Integration = *conn.Integration
	}
	if len(conn.Settings) > 0 {
		if err := json.Unmarshal(conn.Settings, &input.Settings); err != nil {
			return nil, fmt.Errorf("connection service: decode settings: %w", err)
		}
	}
	if conn.CredentialsRef != "" {
		var raw json.RawMessage
		if err := s.vault.Get(ctx, conn.CredentialsRef, &raw); err != nil {
			return nil, fmt.Errorf("connection service: load credentials: %w", err)
		}
		input.Credentials = raw
	}

	testErr := driver.Test(ctx, input)
	now := s.now()
	conn.LastHealthCheck = &now

	if testErr == nil {
		metrics.ConnectionTests.WithLabelValues(string(conn.ConnectionType), "pass").Inc()
		conn.HealthStatus = models.HealthStatusHealthy
		conn.ErrorCount = 0
		conn.LastErrorMessage = ""
		conn.TotalAPICalls++
		conn.LastSuccessfulUse = &now
		if conn.Status == models.ConnectionStatusExpired ||
			conn.Status == models.ConnectionStatusInvalid ||
			conn.Status == models.ConnectionStatusError {
			conn.Status = models.ConnectionStatusActive
		}
	} else if errors.Is(testErr, connectors.ErrUnsupported) {
		return nil, apperrors.ErrUnsupportedConnectionType.WithInternal(testErr)
	} else {
		metrics.ConnectionTests.WithLabelValues(string(conn.ConnectionType), "fail").Inc()
		conn.HealthStatus = models.HealthStatusError
		conn.ErrorCount++
		conn.LastErrorMessage = testErr.Error()
		if conn.ConnectionType == models.ConnectionTypeOAuth2 && s.tokenExpired(conn) {
			conn.Status = models.ConnectionStatusExpired
		} else if conn.ErrorCount >= 3 {
			conn.Status = models.ConnectionStatusError
		}
	}

	if err := s.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, fmt.Errorf("connection service: record test outcome: %w", err)
	}

	outcome := &TestOutcome{Success: testErr == nil, Connection: conn}
	if testErr != nil {
		outcome.Message = testErr.Error()
	}
	return outcome, nil
}

// RefreshToken rotates the stored OAuth token for the connection. The
// credential reference stays stable so concurrent readers never observe a
// dangling pointer.
func (s *ConnectionService) RefreshToken(ctx context.Context, customerID, id string) (*models.Connection, error) {
	ctx = ensureContext(ctx)

	conn, err := s.Get(ctx, customerID, id)
	if err != nil {
		return nil, err
	}
	if conn.Revoked() {
		return nil, apperrors.ErrConnectionRevoked
	}
	if conn.ConnectionType != models.ConnectionTypeOAuth2 {
		return nil, apperrors.ErrUnsupportedConnectionType.WithMessage("token refresh applies only to oauth2 connections")
	}
	if conn.Integration == nil || conn.CredentialsRef == "" {
		return nil, apperrors.ErrNotFound
	}

	var settings connectors.OAuth2Settings
	if err := decodeStoredSettings(conn.Settings, &settings); err != nil {
		return nil, err
	}

	var creds connectors.OAuthCredentials
	if err := s.vault.Get(ctx, conn.CredentialsRef, &creds); err != nil {
		return nil, fmt.Errorf("connection service: load credentials: %w", err)
	}

	refreshed, err := s.oauth.Refresh(ctx, *conn.Integration, settings.Scopes, creds)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("fail").Inc()
		s.markFailure(ctx, conn, err)
		return nil, apperrors.ErrConnectionTestFailed.WithMessage(err.Error())
	}
	metrics.TokenRefreshes.WithLabelValues("pass").Inc()

	if err := s.vault.Replace(ctx, conn.CredentialsRef, refreshed); err != nil {
		return nil, fmt.Errorf("connection service: replace credentials: %w", err)
	}

	now := s.now()
	conn.Status = models.ConnectionStatusActive
	conn.HealthStatus = models.HealthStatusHealthy
	conn.LastHealthCheck = &now
	conn.ErrorCount = 0
	conn.LastErrorMessage = ""
	conn.TokenExpiresAt = nil
	if !refreshed.ExpiresAt.IsZero() {
		expiresAt := refreshed.ExpiresAt
		conn.TokenExpiresAt = &expiresAt
	}

	if err := s.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, fmt.Errorf("connection service: record refreshed token: %w", err)
	}

	s.recordAudit(ctx, customerID, "connection.token_refreshed", conn.ID, map[string]any{
		"mcp_id": conn.MCPID,
	})
	s.events.PublishConnectionEvent(customerID, ConnectionEvent{
		Event:      EventConnectionRefreshed,
		Connection: conn,
		MCPID:      conn.MCPID,
	})

	return conn, nil
}

// Delete removes the connection and, through the model hook, its encrypted
// credential record. Revoked connections may still be deleted for cleanup.
func (s *ConnectionService) Delete(ctx context.Context, customerID, id string) error {
	ctx = ensureContext(ctx)

	conn, err := s.Get(ctx, customerID, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(conn).Error; err != nil {
		return fmt.Errorf("connection service: delete connection: %w", err)
	}

	s.recordAudit(ctx, customerID, "connection.deleted", id, map[string]any{
		"mcp_id": conn.MCPID,
	})
	s.events.PublishConnectionEvent(customerID, ConnectionEvent{
		Event: EventConnectionDeleted,
		MCPID: conn.MCPID,
	})

	return nil
}

// connectableIntegration loads the catalog entry, verifies it matches the
// requested connection kind, and enforces the single-active-connection rule
// for the tenant.
func (s *ConnectionService) connectableIntegration(ctx context.Context, customerID, mcpID string, kind models.ConnectionType) (*models.Integration, error) {
	if strings.TrimSpace(mcpID) == "" {
		return nil, apperrors.NewBadRequest("mcp_id is required")
	}

	var integration models.Integration
	err := s.db.WithContext(ctx).First(&integration, "id = ?", mcpID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("connection service: load integration: %w", err)
	}

	if !integration.Connectable() {
		return nil, apperrors.ErrUnsupportedConnectionType
	}
	if *integration.ConnectionType != kind {
		// Also covers service accounts: no creation path requests that kind.
		return nil, apperrors.ErrUnsupportedConnectionType.WithMessage(
			fmt.Sprintf("%s connects via %s", integration.DisplayName, *integration.ConnectionType))
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&models.Connection{}).
		Where("customer_id = ? AND mcp_id = ? AND status = ?", customerID, mcpID, models.ConnectionStatusActive).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("connection service: check existing connection: %w", err)
	}
	if count > 0 {
		return nil, apperrors.ErrConnectionExists
	}

	return &integration, nil
}

// probe runs a one-off driver test against credentials that are not yet
// persisted.
func (s *ConnectionService) probe(ctx context.Context, integration models.Integration, settings, creds any) error {
	kind := *integration.ConnectionType
	driver, err := s.registry.Resolve(kind)
	if err != nil {
		return err
	}

	settingsMap, err := toMap(settings)
	if err != nil {
		return err
	}
	rawCreds, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("connection service: encode credentials: %w", err)
	}

	return driver.Test(ctx, connectors.TestInput{
		Integration: integration,
		Settings:    settingsMap,
		Credentials: rawCreds,
	})
}

// persistTested seals credentials and stores an already verified connection
// as active and healthy.
func (s *ConnectionService) persistTested(ctx context.Context, customerID string, integration *models.Integration, kind models.ConnectionType, settings, creds any, tokenExpiresAt *time.Time) (*models.Connection, error) {
	ref, err := s.vault.Put(ctx, customerID, creds)
	if err != nil {
		return nil, fmt.Errorf("connection service: store credentials: %w", err)
	}

	settingsRaw, err := settingsJSON(settings)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conn := models.Connection{
		CustomerID:        customerID,
		MCPID:             integration.ID,
		ConnectionType:    kind,
		Status:            models.ConnectionStatusActive,
		HealthStatus:      models.HealthStatusHealthy,
		CredentialsRef:    ref,
		Settings:          settingsRaw,
		LastHealthCheck:   &now,
		LastSuccessfulUse: &now,
		TotalAPICalls:     1,
		TokenExpiresAt:    tokenExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&conn).Error; err != nil {
		return nil, fmt.Errorf("connection service: create connection: %w", err)
	}
	conn.Integration = integration

	s.recordAudit(ctx, customerID, "connection.created", conn.ID, map[string]any{
		"mcp_id":          integration.ID,
		"connection_type": string(kind),
	})
	s.events.PublishConnectionEvent(customerID, ConnectionEvent{
		Event:      EventConnectionCreated,
		Connection: &conn,
		MCPID:      integration.ID,
	})

	return &conn, nil
}

// markFailure records an error on the connection without surfacing storage
// problems to the caller; the original failure matters more.
func (s *ConnectionService) markFailure(ctx context.Context, conn *models.Connection, cause error) {
	now := s.now()
	conn.HealthStatus = models.HealthStatusError
	conn.ErrorCount++
	conn.LastErrorMessage = cause.Error()
	conn.LastHealthCheck = &now
	if err := s.db.WithContext(ctx).Save(conn).Error; err != nil {
		s.log.Warn("failed to record connection failure",
			zap.String("connection_id", conn.ID),
			zap.Error(err))
	}
}

func (s *ConnectionService) tokenExpired(conn *models.Connection) bool {
	return conn.TokenExpiresAt != nil && s.now().After(*conn.TokenExpiresAt)
}

func (s *ConnectionService) recordAudit(ctx context.Context, customerID, action, resourceID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Log(ctx, AuditEntry{
		CustomerID:   customerID,
		Action:       action,
		ResourceType: "connection",
		ResourceID:   resourceID,
		Detail:       detail,
	})
	if err != nil {
		s.log.Warn("failed to write audit entry",
			zap.String("action", action),
			zap.Error(err))
	}
}

func settingsJSON(settings any) (datatypes.JSON, error) {
	if settings == nil {
		return nil, nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("connection service: encode settings: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeStoredSettings(raw datatypes.JSON, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("connection service: decode settings: %w", err)
	}
	return nil
}

func toMap(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("connection service: encode settings: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("connection service: decode settings: %w", err)
	}
	return out, nil
}

func integrationScopes(integration *models.Integration) ([]string, error) {
	if len(integration.OAuthScopes) == 0 {
		return nil, nil
	}
	var scopes []string
	if err := json.Unmarshal(integration.OAuthScopes, &scopes); err != nil {
		return nil, fmt.Errorf("connection service: decode oauth scopes: %w", err)
	}
	return scopes, nil
}
