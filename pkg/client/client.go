// Package client is the Go SDK for the ConnectHub connection store. It
// carries an explicit bearer token per client instance rather than reading
// ambient credential state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to one ConnectHub deployment on behalf of one tenant.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New constructs a client for the given base URL and bearer token. An empty
// token produces unauthenticated requests; the server rejects those.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the store.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ListConnections returns every connection belonging to the tenant.
func (c *Client) ListConnections(ctx context.Context) ([]Connection, error) {
	var conns []Connection
	if err := c.do(ctx, http.MethodGet, "/api/connections/", nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// GetConnection loads one connection by id.
func (c *Client) GetConnection(ctx context.Context, id string) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodGet, "/api/connections/"+url.PathEscape(id), nil, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// TestConnection runs the store-side connectivity probe. A failed probe is
// not an error here; the result carries the outcome.
func (c *Client) TestConnection(ctx context.Context, id string) (*TestResult, error) {
	var result TestResult
	if err := c.do(ctx, http.MethodPost, "/api/connections/"+url.PathEscape(id)+"/test", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshConnection rotates the stored OAuth token.
func (c *Client) RefreshConnection(ctx context.Context, id string) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodPatch, "/api/connections/"+url.PathEscape(id)+"/refresh", nil, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// DeleteConnection hard deletes a connection and its stored credentials.
func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/connections/"+url.PathEscape(id), nil, nil)
}

// StartOAuth begins the authorization-code flow for an integration.
func (c *Client) StartOAuth(ctx context.Context, mcpID string) (*OAuthStart, error) {
	var start OAuthStart
	body := map[string]string{"mcp_id": mcpID}
	if err := c.do(ctx, http.MethodPost, "/api/connections/oauth/start", body, &start); err != nil {
		return nil, err
	}
	return &start, nil
}

// CreateAPIKeyConnection submits an API key for synchronous testing and storage.
func (c *Client) CreateAPIKeyConnection(ctx context.Context, req APIKeyRequest) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodPost, "/api/connections/api-key", req, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// CreateDatabaseConnection submits database parameters for synchronous
// testing and storage.
func (c *Client) CreateDatabaseConnection(ctx context.Context, req DatabaseRequest) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodPost, "/api/connections/database", req, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListIntegrations returns integration definitions from the catalog.
func (c *Client) ListIntegrations(ctx context.Context, pageSize int) ([]Integration, error) {
	path := "/api/mcps/"
	if pageSize > 0 {
		path += "?page_size=" + strconv.Itoa(pageSize)
	}
	var defs []Integration
	if err := c.do(ctx, http.MethodGet, path, nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				return fmt.Errorf("client: decode response: %w", err)
			}
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
		}
	} else if resp.StatusCode >= 200 && resp.StatusCode <= 299 && dest == nil {
		// A bodyless success such as 204 carries nothing to decode.
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("client: decode payload: %w", err)
	}
	return nil
}
