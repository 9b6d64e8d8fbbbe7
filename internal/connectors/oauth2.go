package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/modelgrid/connecthub/internal/models"
)

// OAuth2Driver handles the authorization-code flow for oauth2 connections:
// building authorization URLs, exchanging codes, refreshing tokens, and
// probing token validity.
type OAuth2Driver struct {
	client *http.Client
	now    func() time.Time
}

// NewOAuth2Driver constructs the driver. A nil client falls back to a default
// with a bounded timeout.
func NewOAuth2Driver(client *http.Client) *OAuth2Driver {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return &OAuth2Driver{client: client, now: time.Now}
}

// Type implements Driver.
func (d *OAuth2Driver) Type() models.ConnectionType {
	return models.ConnectionTypeOAuth2
}

// Test implements Driver. When the integration exposes a ping endpoint the
// access token is probed against it; otherwise only local expiry is checked.
func (d *OAuth2Driver) Test(ctx context.Context, in TestInput) error {
	var creds OAuthCredentials
	if err := decodeCredentials(in.Credentials, &creds); err != nil {
		return err
	}
	if creds.AccessToken == "" {
		return errors.New("no access token is stored")
	}
	if creds.Expired(d.now()) {
		return errors.New("access token has expired")
	}

	pingURL := strings.TrimSpace(in.Integration.PingURL)
	if pingURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

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

// AuthCodeURL builds the provider authorization URL for the supplied state nonce.
func (d *OAuth2Driver) AuthCodeURL(ctx context.Context, integration models.Integration, scopes []string, redirectURL, state string) (string, error) {
	cfg, err := d.config(ctx, integration, scopes, redirectURL)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange swaps an authorization code for a token.
func (d *OAuth2Driver) Exchange(ctx context.Context, integration models.Integration, scopes []string, redirectURL, code string) (*OAuthCredentials, error) {
	cfg, err := d.config(ctx, integration, scopes, redirectURL)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(d.httpContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return credentialsFromToken(token), nil
}

// Refresh obtains a fresh access token using the stored refresh token.
func (d *OAuth2Driver) Refresh(ctx context.Context, integration models.Integration, scopes []string, creds OAuthCredentials) (*OAuthCredentials, error) {
	if creds.RefreshToken == "" {
		return nil, errors.New("no refresh token is stored")
	}

	cfg, err := d.config(ctx, integration, scopes, "")
	if err != nil {
		return nil, err
	}

	source := cfg.TokenSource(d.httpContext(ctx), &oauth2.Token{RefreshToken: creds.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	refreshed := credentialsFromToken(token)
	if refreshed.RefreshToken == "" {
		// Providers that rotate refresh tokens return a new one; the rest
		// expect the original to be kept.
		refreshed.RefreshToken = creds.RefreshToken
	}
	return refreshed, nil
}

func (d *OAuth2Driver) config(ctx context.Context, integration models.Integration, scopes []string, redirectURL string) (*oauth2.Config, error) {
	if strings.TrimSpace(integration.OAuthClientID) == "" {
		return nil, fmt.Errorf("integration %s has no OAuth client id", integration.Name)
	}

	endpoint, err := d.endpoint(ctx, integration)
	if err != nil {
		return nil, err
	}

	return &oauth2.Config{
		ClientID:     integration.OAuthClientID,
		ClientSecret: integration.OAuthSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}, nil
}

func (d *OAuth2Driver) endpoint(ctx context.Context, integration models.Integration) (oauth2.Endpoint, error) {
	if issuer := strings.TrimSpace(integration.OAuthIssuer); issuer != "" {
		provider, err := oidc.NewProvider(d.httpContext(ctx), issuer)
		if err != nil {
			return oauth2.Endpoint{}, fmt.Errorf("discover issuer %s: %w", issuer, err)
		}
		return provider.Endpoint(), nil
	}

	if integration.OAuthAuthURL == "" || integration.OAuthTokenURL == "" {
		return oauth2.Endpoint{}, fmt.Errorf("integration %s has no OAuth endpoints configured", integration.Name)
	}
	return oauth2.Endpoint{
		AuthURL:  integration.OAuthAuthURL,
		TokenURL: integration.OAuthTokenURL,
	}, nil
}

// httpContext injects the driver's HTTP client so token exchanges honour its timeout.
func (d *OAuth2Driver) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, d.client)
}

func credentialsFromToken(token *oauth2.Token) *OAuthCredentials {
	return &OAuthCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
}
