package monitoring

import (
	"context"
	"sync"
	"time"
)

// ProbeStatus classifies the result of a single health probe.
type ProbeStatus string

const (
	StatusHealthy  ProbeStatus = "healthy"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

// Check is the result of one probe run.
type Check struct {
	Name     string        `json:"name"`
	Status   ProbeStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

// Probe verifies one dependency. A nil return means healthy.
type Probe func(ctx context.Context) error

// HealthManager runs registered probes and aggregates their results.
type HealthManager struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewHealthManager constructs an empty manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		probes:  make(map[string]Probe),
		timeout: 5 * time.Second,
	}
}

// Register adds a named probe. Re-registering a name replaces the probe.
func (m *HealthManager) Register(name string, probe Probe) {
	if name == "" || probe == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
}

// Report runs every probe and returns the individual results plus the overall
// status. Any failing probe degrades the whole report.
func (m *HealthManager) Report(ctx context.Context) (ProbeStatus, []Check) {
	m.mu.RLock()
	names := make([]string, 0, len(m.probes))
	probes := make([]Probe, 0, len(m.probes))
	for name, probe := range m.probes {
		names = append(names, name)
		probes = append(probes, probe)
	}
	m.mu.RUnlock()

	overall := StatusHealthy
	checks := make([]Check, 0, len(probes))

	for i, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		started := time.Now()
		err := probe(probeCtx)
		cancel()

		check := Check{
			Name:     names[i],
			Status:   StatusHealthy,
			Duration: time.Since(started),
		}
		if err != nil {
			check.Status = StatusDown
			check.Error = err.Error()
			overall = StatusDegraded
		}
		checks = append(checks, check)
	}

	return overall, checks
}
