package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/pkg/logger"
)

const (
	defaultHealthSpec         = "@every 30s"
	defaultAuditSpec          = "@daily"
	defaultAuditRetentionDays = 90
)

// Sweeper schedules the periodic connection health sweep and audit log
// retention enforcement.
type Sweeper struct {
	connections *services.ConnectionService
	audit       *services.AuditService
	cron        *cron.Cron
	log         *zap.Logger

	healthSchedule string
	auditSchedule  string
	retentionDays  int

	mu            sync.Mutex
	lastHealthRun time.Time
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithHealthSchedule overrides the cron expression for the health sweep.
func WithHealthSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.healthSchedule = spec
		}
	}
}

// WithHealthInterval sets the health sweep cadence from a duration.
func WithHealthInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.healthSchedule = "@every " + interval.String()
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(s *Sweeper) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults. A nil audit service
// disables the retention job.
func NewSweeper(connections *services.ConnectionService, audit *services.AuditService, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		connections:    connections,
		audit:          audit,
		healthSchedule: defaultHealthSpec,
		auditSchedule:  defaultAuditSpec,
		retentionDays:  defaultAuditRetentionDays,
		log:            logger.WithComponent("sweep"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Start registers the jobs with the scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.connections != nil {
		if _, err := s.cron.AddFunc(s.healthSchedule, func() {
			if _, err := s.connections.SweepHealth(context.Background()); err != nil {
				s.log.Warn("health sweep reported errors", zap.Error(err))
			}
			s.markHealthRun()
		}); err != nil {
			return err
		}
	}

	if s.audit != nil && s.retentionDays > 0 {
		if _, err := s.cron.AddFunc(s.auditSchedule, func() {
			if _, err := s.audit.CleanupOlderThan(context.Background(), s.retentionDays); err != nil {
				s.log.Warn("audit retention cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// LastHealthSweep reports when the health sweep last completed. The zero
// time means it has not run yet.
func (s *Sweeper) LastHealthSweep() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHealthRun
}

func (s *Sweeper) markHealthRun() {
	s.mu.Lock()
	s.lastHealthRun = time.Now()
	s.mu.Unlock()
}

// RunOnce executes every configured job sequentially. Used in tests and
// during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.connections != nil {
		if _, err := s.connections.SweepHealth(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
		s.markHealthRun()
	}
	if s.audit != nil && s.retentionDays > 0 {
		if _, err := s.audit.CleanupOlderThan(ctx, s.retentionDays); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
