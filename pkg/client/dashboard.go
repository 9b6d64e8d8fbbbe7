package client

import (
	"context"
	"time"
)

// DefaultRefreshInterval is the dashboard's self-refresh cadence.
const DefaultRefreshInterval = 30 * time.Second

// Badge values derived from connection state.
const (
	BadgeRevoked = "Revoked"
	BadgeHealthy = "Healthy"
	BadgeWarning = "Warning"
	BadgeError   = "Error"
	BadgeUnknown = "Unknown"
)

// Card is one dashboard entry: a connection merged with its catalog
// definition and the derived display fields.
type Card struct {
	Connection  Connection
	Integration *Integration

	HealthBadge string
	LastUsed    string
	TokenExpiry string
}

// Snapshot is one dashboard refresh result.
type Snapshot struct {
	Cards     []Card
	FetchedAt time.Time
}

// Dashboard periodically loads the tenant's connections and exposes the
// mutating actions. Actions re-fetch rather than updating optimistically so
// displayed telemetry always reflects server state.
type Dashboard struct {
	client   *Client
	interval time.Duration
	now      func() time.Time
}

// DashboardOption customises the Dashboard.
type DashboardOption func(*Dashboard)

// WithRefreshInterval overrides the self-refresh cadence.
func WithRefreshInterval(interval time.Duration) DashboardOption {
	return func(d *Dashboard) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// NewDashboard constructs a dashboard over the given client.
func NewDashboard(c *Client, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		client:   c,
		interval: DefaultRefreshInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Refresh fetches connections and integration definitions, merging them by
// integration id.
func (d *Dashboard) Refresh(ctx context.Context) (*Snapshot, error) {
	conns, err := d.client.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := d.client.ListIntegrations(ctx, 100)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Integration, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}

	now := d.now()
	cards := make([]Card, 0, len(conns))
	for _, conn := range conns {
		card := Card{
			Connection:  conn,
			Integration: conn.Integration,
			HealthBadge: HealthBadge(&conn),
			TokenExpiry: FormatTokenExpiry(conn.TokenExpiresAt, now),
		}
		if card.Integration == nil {
			card.Integration = byID[conn.MCPID]
		}
		if conn.LastSuccessfulUse != nil {
			card.LastUsed = FormatRelativeTime(*conn.LastSuccessfulUse, now)
		}
		cards = append(cards, card)
	}

	return &Snapshot{Cards: cards, FetchedAt: now}, nil
}

// Watch refreshes on the configured interval and hands each snapshot to fn
// until the context is cancelled. Errors are delivered to fn via a nil
// snapshot so a transient server problem does not stop the poller.
func (d *Dashboard) Watch(ctx context.Context, fn func(*Snapshot, error)) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	fn(d.Refresh(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(d.Refresh(ctx))
		}
	}
}

// Test probes one connection and re-fetches the list.
func (d *Dashboard) Test(ctx context.Context, id string) (*TestResult, *Snapshot, error) {
	result, err := d.client.TestConnection(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := d.Refresh(ctx)
	return result, snapshot, err
}

// RefreshToken rotates one connection's OAuth token and re-fetches the list.
func (d *Dashboard) RefreshToken(ctx context.Context, id string) (*Snapshot, error) {
	if _, err := d.client.RefreshConnection(ctx, id); err != nil {
		return nil, err
	}
	return d.Refresh(ctx)
}

// Delete removes one connection and re-fetches the list.
func (d *Dashboard) Delete(ctx context.Context, id string) (*Snapshot, error) {
	if err := d.client.DeleteConnection(ctx, id); err != nil {
		return nil, err
	}
	return d.Refresh(ctx)
}

// HealthBadge derives the displayed health indicator. Revoked connections
// always render the neutral badge regardless of their health status.
func HealthBadge(conn *Connection) string {
	if conn.Revoked() {
		return BadgeRevoked
	}
	switch conn.HealthStatus {
	case "healthy":
		return BadgeHealthy
	case "warning":
		return BadgeWarning
	case "error":
		return BadgeError
	default:
		return BadgeUnknown
	}
}
