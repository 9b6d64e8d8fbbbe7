package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportAggregatesProbes(t *testing.T) {
	manager := NewHealthManager()
	manager.Register("ok", func(context.Context) error { return nil })

	status, checks := manager.Report(context.Background())
	require.Equal(t, StatusHealthy, status)
	require.Len(t, checks, 1)
	require.Equal(t, StatusHealthy, checks[0].Status)

	manager.Register("broken", func(context.Context) error { return errors.New("dependency offline") })

	status, checks = manager.Report(context.Background())
	require.Equal(t, StatusDegraded, status)
	require.Len(t, checks, 2)

	byName := map[string]Check{}
	for _, check := range checks {
		byName[check.Name] = check
	}
	require.Equal(t, StatusDown, byName["broken"].Status)
	require.Contains(t, byName["broken"].Error, "dependency offline")
	require.Equal(t, StatusHealthy, byName["ok"].Status)
}

func TestRegisterIgnoresEmptyEntries(t *testing.T) {
	manager := NewHealthManager()
	manager.Register("", func(context.Context) error { return nil })
	manager.Register("nil", nil)

	status, checks := manager.Report(context.Background())
	require.Equal(t, StatusHealthy, status)
	require.Empty(t, checks)
}

func TestRecencyProbe(t *testing.T) {
	var last time.Time
	probe := RecencyProbe(func() time.Time { return last }, time.Minute)

	// Not run yet: warming up, still healthy.
	require.NoError(t, probe(context.Background()))

	last = time.Now().Add(-30 * time.Second)
	require.NoError(t, probe(context.Background()))

	last = time.Now().Add(-5 * time.Minute)
	err := probe(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "limit")
}
