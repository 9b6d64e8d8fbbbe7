package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modelgrid/connecthub/internal/api"
	iauth "github.com/modelgrid/connecthub/internal/auth"
	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/connectors"
	"github.com/modelgrid/connecthub/internal/database/testutil"
	"github.com/modelgrid/connecthub/internal/models"
	"github.com/modelgrid/connecthub/internal/monitoring"
	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/internal/vault"
)

type passDriver struct {
	kind models.ConnectionType
}

func (d passDriver) Type() models.ConnectionType { return d.kind }

func (d passDriver) Test(context.Context, connectors.TestInput) error { return nil }

type apiFixture struct {
	router *gin.Engine
	jwt    *iauth.JWTService
	db     *testDB
}

type testDB struct {
	seedIntegration func(t *testing.T, kind models.ConnectionType) models.Integration
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	crypto, err := vault.NewCrypto([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	credStore, err := vault.NewStore(db, crypto)
	require.NoError(t, err)

	registry := connectors.NewRegistry()
	registry.MustRegister(passDriver{kind: models.ConnectionTypeAPIKey})
	registry.MustRegister(passDriver{kind: models.ConnectionTypeDatabase})
	registry.MustRegister(connectors.NewOAuth2Driver(nil))
	registry.MustRegister(connectors.NewServiceAccountDriver())

	cacheStore := cache.NewDatabaseStore(db)

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	catalog, err := services.NewCatalogService(db)
	require.NoError(t, err)
	connections, err := services.NewConnectionService(services.ConnectionServiceDeps{
		DB:       db,
		Vault:    credStore,
		Registry: registry,
		Cache:    cacheStore,
		Audit:    audit,
	})
	require.NoError(t, err)

	jwtService, err := iauth.NewJWTService("router-test-secret")
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.Register("database", monitoring.DatabaseProbe(db))

	router, err := api.NewRouter(api.Dependencies{
		JWT:         jwtService,
		Connections: connections,
		Catalog:     catalog,
		Audit:       audit,
		Cache:       cacheStore,
		Health:      health,
	})
	require.NoError(t, err)

	return &apiFixture{
		router: router,
		jwt:    jwtService,
		db: &testDB{
			seedIntegration: func(t *testing.T, kind models.ConnectionType) models.Integration {
				integration := models.Integration{
					Name:           "it-" + uuid.NewString(),
					DisplayName:    "Test Integration",
					Category:       "testing",
					ConnectionType: &kind,
				}
				require.NoError(t, db.Create(&integration).Error)
				return integration
			},
		},
	}
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (bool, json.RawMessage) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Success, env.Data
}

func TestRouterRejectsMissingToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/api/connections/", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request(t, http.MethodGet, "/api/connections/", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterHealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	success, _ := decodeEnvelope(t, w)
	require.True(t, success)
}

func TestConnectionLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	customer := uuid.NewString()
	token, err := f.jwt.Generate(customer)
	require.NoError(t, err)

	integration := f.db.seedIntegration(t, models.ConnectionTypeAPIKey)

	// Create.
	w := f.request(t, http.MethodPost, "/api/connections/api-key", token, map[string]any{
		"mcp_id":  integration.ID,
		"api_key": "sk_live_http",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	success, data := decodeEnvelope(t, w)
	require.True(t, success)

	var created models.Connection
	require.NoError(t, json.Unmarshal(data, &created))
	require.Equal(t, models.ConnectionStatusActive, created.Status)
	require.JSONEq(t, "{}", string(created.Settings), "settings carry no secret fields for api_key")

	// List.
	w = f.request(t, http.MethodGet, "/api/connections/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, data = decodeEnvelope(t, w)
	var listed []models.Connection
	require.NoError(t, json.Unmarshal(data, &listed))
	require.Len(t, listed, 1)

	// Test.
	w = f.request(t, http.MethodPost, "/api/connections/"+created.ID+"/test", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Another tenant cannot see the connection.
	otherToken, err := f.jwt.Generate(uuid.NewString())
	require.NoError(t, err)
	w = f.request(t, http.MethodGet, "/api/connections/"+created.ID, otherToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Delete.
	w = f.request(t, http.MethodDelete, "/api/connections/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodGet, "/api/connections/"+created.ID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDatabaseValidation(t *testing.T) {
	f := newAPIFixture(t)
	token, err := f.jwt.Generate(uuid.NewString())
	require.NoError(t, err)

	integration := f.db.seedIntegration(t, models.ConnectionTypeDatabase)

	w := f.request(t, http.MethodPost, "/api/connections/database", token, map[string]any{
		"mcp_id": integration.ID,
		"host":   "db.internal",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogListExcludesBundledCapabilities(t *testing.T) {
	f := newAPIFixture(t)
	token, err := f.jwt.Generate(uuid.NewString())
	require.NoError(t, err)

	connectable := f.db.seedIntegration(t, models.ConnectionTypeAPIKey)

	w := f.request(t, http.MethodGet, "/api/mcps/?page_size=100", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeEnvelope(t, w)
	var defs []models.Integration
	require.NoError(t, json.Unmarshal(data, &defs))

	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		require.NotNil(t, def.ConnectionType)
		ids = append(ids, def.ID)
	}
	require.Contains(t, ids, connectable.ID)
}
