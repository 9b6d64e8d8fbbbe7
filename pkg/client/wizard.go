package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WizardState is one of the connection wizard's states.
type WizardState string

const (
	StateConfigure WizardState = "configure"
	StateTesting   WizardState = "testing"
	StateSuccess   WizardState = "success"
	StateError     WizardState = "error"
)

const (
	defaultActivationPoll = 500 * time.Millisecond
	defaultActivationWait = 2 * time.Minute
)

// ErrOAuthTimeout reports that the authorization flow never produced an
// active connection within the wait window. It is distinguishable from a
// provider denial or transport failure.
var ErrOAuthTimeout = errors.New("client: timed out waiting for authorization to complete")

// ErrNoCreationFlow reports that the selected integration's connection kind
// cannot be created interactively.
var ErrNoCreationFlow = errors.New("client: no creation flow is available for this connection type")

// DatabaseForm holds the wizard's database configuration fields.
type DatabaseForm struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Complete reports whether every required field is filled. Submission stays
// unavailable until it returns true.
func (f *DatabaseForm) Complete() bool {
	return strings.TrimSpace(f.Host) != "" &&
		f.Port > 0 &&
		strings.TrimSpace(f.Database) != "" &&
		strings.TrimSpace(f.Username) != "" &&
		f.Password != ""
}

// Wizard drives the connection creation state machine:
// configure -> testing -> success or error, with error -> configure on retry.
type Wizard struct {
	client      *Client
	integration Integration

	state        WizardState
	connectionID string
	lastError    string

	pollInterval time.Duration
	maxWait      time.Duration
	now          func() time.Time
}

// WizardOption customises the Wizard.
type WizardOption func(*Wizard)

// WithActivationPoll overrides how often the wizard polls for OAuth activation.
func WithActivationPoll(interval time.Duration) WizardOption {
	return func(w *Wizard) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithActivationWait bounds how long the wizard waits for OAuth activation.
func WithActivationWait(wait time.Duration) WizardOption {
	return func(w *Wizard) {
		if wait > 0 {
			w.maxWait = wait
		}
	}
}

// NewWizard constructs a wizard for one integration definition.
func NewWizard(c *Client, integration Integration, opts ...WizardOption) *Wizard {
	w := &Wizard{
		client:       c,
		integration:  integration,
		state:        StateConfigure,
		pollInterval: defaultActivationPoll,
		maxWait:      defaultActivationWait,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the wizard's current state.
func (w *Wizard) State() WizardState { return w.state }

// ConnectionID returns the created connection's id once the wizard succeeds.
func (w *Wizard) ConnectionID() string { return w.connectionID }

// LastError returns the message shown in the error state.
func (w *Wizard) LastError() string { return w.lastError }

// Supported reports whether the integration offers an interactive creation
// flow. Service accounts are provisioned out of band.
func (w *Wizard) Supported() bool {
	if !w.integration.Connectable() {
		return false
	}
	return *w.integration.ConnectionType != TypeServiceAccount
}

// Retry returns from the error state to configure.
func (w *Wizard) Retry() {
	if w.state == StateError {
		w.state = StateConfigure
		w.lastError = ""
	}
}

// SubmitAPIKey runs the api_key creation protocol: the store tests the key
// synchronously and either returns the new connection or a failure message.
func (w *Wizard) SubmitAPIKey(ctx context.Context, apiKey, apiSecret, label string) error {
	if err := w.ensureKind(TypeAPIKey); err != nil {
		return err
	}
	if strings.TrimSpace(apiKey) == "" {
		return w.fail(errors.New("client: api key is required"))
	}

	w.state = StateTesting
	conn, err := w.client.CreateAPIKeyConnection(ctx, APIKeyRequest{
		MCPID:     w.integration.ID,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Label:     label,
	})
	if err != nil {
		return w.fail(err)
	}

	w.succeed(conn.ID)
	return nil
}

// SubmitDatabase runs the database creation protocol. The form must be
// complete before submission is possible.
func (w *Wizard) SubmitDatabase(ctx context.Context, form DatabaseForm) error {
	if err := w.ensureKind(TypeDatabase); err != nil {
		return err
	}
	if !form.Complete() {
		return w.fail(errors.New("client: host, port, database, username, and password are required"))
	}

	w.state = StateTesting
	conn, err := w.client.CreateDatabaseConnection(ctx, DatabaseRequest{
		MCPID:    w.integration.ID,
		Host:     form.Host,
		Port:     form.Port,
		Database: form.Database,
		Username: form.Username,
		Password: form.Password,
		SSLMode:  form.SSLMode,
	})
	if err != nil {
		return w.fail(err)
	}

	w.succeed(conn.ID)
	return nil
}

// ConnectOAuth begins the authorization-code flow and returns the URL the
// caller must open for the user. The wizard moves to testing; call
// WaitForActivation once the user has finished with the provider.
func (w *Wizard) ConnectOAuth(ctx context.Context) (string, error) {
	if err := w.ensureKind(TypeOAuth2); err != nil {
		return "", err
	}

	start, err := w.client.StartOAuth(ctx, w.integration.ID)
	if err != nil {
		return "", w.fail(err)
	}

	w.state = StateTesting
	w.connectionID = start.ConnectionID
	return start.AuthorizationURL, nil
}

// WaitForActivation polls the pending connection until it reaches active
// status. The wait is bounded: expiry yields ErrOAuthTimeout, and cancelling
// the context stops the poll immediately.
func (w *Wizard) WaitForActivation(ctx context.Context) error {
	if w.state != StateTesting || w.connectionID == "" {
		return fmt.Errorf("client: no authorization flow in progress")
	}

	deadline := w.now().Add(w.maxWait)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		conn, err := w.client.GetConnection(ctx, w.connectionID)
		if err == nil {
			switch conn.Status {
			case StatusActive:
				w.succeed(conn.ID)
				return nil
			case StatusError, StatusInvalid:
				return w.fail(fmt.Errorf("client: authorization failed: %s", conn.LastErrorMessage))
			}
		}

		if w.now().After(deadline) {
			w.failMessage(ErrOAuthTimeout.Error())
			return ErrOAuthTimeout
		}

		select {
		case <-ctx.Done():
			return w.fail(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *Wizard) ensureKind(kind ConnectionType) error {
	if !w.Supported() || *w.integration.ConnectionType != kind {
		w.failMessage(ErrNoCreationFlow.Error())
		return ErrNoCreationFlow
	}
	return nil
}

func (w *Wizard) succeed(connectionID string) {
	w.state = StateSuccess
	w.connectionID = connectionID
	w.lastError = ""
}

func (w *Wizard) fail(err error) error {
	w.failMessage(err.Error())
	return err
}

func (w *Wizard) failMessage(message string) {
	w.state = StateError
	w.lastError = message
}
