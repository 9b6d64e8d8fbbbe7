package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelgrid/connecthub/internal/models"
)

const defaultProbeTimeout = 10 * time.Second

// APIKeyDriver probes api_key connections by calling the integration's ping
// endpoint with the stored key.
type APIKeyDriver struct {
	client *http.Client
}

// NewAPIKeyDriver constructs the driver. A nil client falls back to a default
// with a bounded timeout.
func NewAPIKeyDriver(client *http.Client) *APIKeyDriver {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return &APIKeyDriver{client: client}
}

// Type implements Driver.
func (d *APIKeyDriver) Type() models.ConnectionType {
	return models.ConnectionTypeAPIKey
}

// Test implements Driver.
func (d *APIKeyDriver) Test(ctx context.Context, in TestInput) error {
	var creds APIKeyCredentials
	if err := decodeCredentials(in.Credentials, &creds); err != nil {
		return err
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return fmt.Errorf("api key is required")
	}

	pingURL := strings.TrimSpace(in.Integration.PingURL)
	if pingURL == "" {
		// Nothing to probe against; the key being present is all we can verify.
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	if header := strings.TrimSpace(in.Integration.AuthHeader); header != "" {
		req.Header.Set(header, creds.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", in.Integration.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: unexpected status %d", in.Integration.Name, resp.StatusCode)
	}
	return nil
}
