package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/pkg/errors"
	"github.com/modelgrid/connecthub/pkg/response"
)

// ConnectionHandler exposes the connection record store over HTTP.
type ConnectionHandler struct {
	connections *services.ConnectionService
}

// NewConnectionHandler constructs the handler.
func NewConnectionHandler(connections *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// List returns every connection belonging to the tenant.
func (h *ConnectionHandler) List(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	conns, err := h.connections.List(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conns)
}

// Get returns a single connection.
func (h *ConnectionHandler) Get(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.connections.Get(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conn)
}

// Delete removes a connection and its stored credentials.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.connections.Delete(c.Request.Context(), tenant, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Test runs the connection's connectivity probe. A failing probe is still a
// 200: the outcome payload carries the result either way.
func (h *ConnectionHandler) Test(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.connections.Test(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// Refresh rotates the stored OAuth token.
func (h *ConnectionHandler) Refresh(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.connections.RefreshToken(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conn)
}

type startOAuthRequest struct {
	MCPID string `json:"mcp_id" validate:"required,uuid4"`
}

// StartOAuth begins the authorization-code flow for an oauth2 integration.
func (h *ConnectionHandler) StartOAuth(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req startOAuthRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	start, err := h.connections.StartOAuth(c.Request.Context(), tenant, req.MCPID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, start)
}

// OAuthCallback completes the authorization-code flow. The provider redirects
// the browser here; the tenant is recovered from the state nonce rather than
// a bearer token.
func (h *ConnectionHandler) OAuthCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")

	if providerErr := c.Query("error"); providerErr != "" {
		response.Error(c, errors.ErrConnectionTestFailed.WithMessage(providerErr))
		return
	}

	conn, err := h.connections.CompleteOAuth(c.Request.Context(), state, code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conn)
}

type createAPIKeyRequest struct {
	MCPID     string `json:"mcp_id" validate:"required,uuid4"`
	APIKey    string `json:"api_key" validate:"required"`
	APISecret string `json:"api_secret,omitempty"`
	Label     string `json:"label,omitempty" validate:"max=128"`
}

// CreateAPIKey stores an api_key connection after probing the key.
func (h *ConnectionHandler) CreateAPIKey(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createAPIKeyRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.connections.CreateAPIKey(c.Request.Context(), tenant, services.CreateAPIKeyInput{
		MCPID:     req.MCPID,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
		Label:     req.Label,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conn)
}

type createDatabaseRequest struct {
	MCPID    string `json:"mcp_id" validate:"required,uuid4"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Database string `json:"database" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// CreateDatabase stores a database connection after dialing the target.
func (h *ConnectionHandler) CreateDatabase(c *gin.Context) {
	tenant, err := customerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createDatabaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.connections.CreateDatabase(c.Request.Context(), tenant, services.CreateDatabaseInput{
		MCPID:    req.MCPID,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		SSLMode:  req.SSLMode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, conn)
}
