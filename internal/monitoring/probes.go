package monitoring

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/modelgrid/connecthub/internal/cache"
)

// DatabaseProbe pings the underlying SQL connection.
func DatabaseProbe(db *gorm.DB) Probe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("acquire sql connection: %w", err)
		}
		return sqlDB.PingContext(ctx)
	}
}

// CacheProbe verifies the cache store answers reads.
func CacheProbe(store cache.Store) Probe {
	return func(ctx context.Context) error {
		_, _, err := store.Get(ctx, "health:probe")
		return err
	}
}

// RecencyProbe reports degraded when a periodic job has not completed within
// maxAge. A zero last-run time is treated as still warming up.
func RecencyProbe(lastRun func() time.Time, maxAge time.Duration) Probe {
	return func(context.Context) error {
		last := lastRun()
		if last.IsZero() {
			return nil
		}
		if age := time.Since(last); age > maxAge {
			return fmt.Errorf("last completed %s ago (limit %s)", age.Round(time.Second), maxAge)
		}
		return nil
	}
}
