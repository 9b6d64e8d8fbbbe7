package services

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/modelgrid/connecthub/pkg/metrics"

	"github.com/modelgrid/connecthub/internal/models"
)

// SweepResult summarizes one pass of the periodic health sweep.
type SweepResult struct {
	Checked   int
	Healthy   int
	Unhealthy int
	Skipped   int
}

// SweepHealth probes established connections and records the results.
// Revoked connections are terminal and never re-enter the sweep. Pending
// rows are excluded too: an OAuth flow still waiting at the provider has no
// credentials to probe, and failing it here would abort the authorization.
// Individual probe storage failures are aggregated so one bad row cannot
// stop the pass.
func (s *ConnectionService) SweepHealth(ctx context.Context) (*SweepResult, error) {
	ctx = ensureContext(ctx)
	started := s.now()

	var conns []models.Connection
	err := s.db.WithContext(ctx).
		Preload("Integration").
		Where("status NOT IN ?", []models.ConnectionStatus{
			models.ConnectionStatusRevoked,
			models.ConnectionStatusPending,
		}).
		Order("last_health_check ASC").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("connection service: load sweep candidates: %w", err)
	}

	result := &SweepResult{}
	var errs error

	for i := range conns {
		conn := &conns[i]
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if conn.ConnectionType == models.ConnectionTypeServiceAccount {
			result.Skipped++
			continue
		}

		outcome, err := s.runTest(ctx, conn)
		if err != nil {
			result.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("connection %s: %w", conn.ID, err))
			continue
		}

		result.Checked++
		if outcome.Success {
			result.Healthy++
		} else {
			result.Unhealthy++
			s.events.PublishConnectionEvent(conn.CustomerID, ConnectionEvent{
				Event:      EventConnectionHealth,
				Connection: conn,
				MCPID:      conn.MCPID,
			})
		}
	}

	elapsed := s.now().Sub(started)
	metrics.HealthSweepDuration.Observe(elapsed.Seconds())
	s.log.Info("health sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("healthy", result.Healthy),
		zap.Int("unhealthy", result.Unhealthy),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", elapsed))

	return result, errs
}
