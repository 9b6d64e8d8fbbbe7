package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelgrid/connecthub/internal/models"
)

var (
	// ErrUnknownType signals a lookup for a connection type with no registered driver.
	ErrUnknownType = errors.New("connectors: unknown connection type")
	// ErrNilDriver signals an attempt to register a nil driver instance.
	ErrNilDriver = errors.New("connectors: nil driver")
	// ErrDuplicateType indicates a driver registration conflict.
	ErrDuplicateType = errors.New("connectors: connection type already registered")
	// ErrUnsupported is returned by drivers whose connection kind offers no
	// self-service protocol (service accounts are provisioned out of band).
	ErrUnsupported = errors.New("connectors: connection type is not self-serviceable")
)

// TestInput carries everything a driver needs to probe one connection.
type TestInput struct {
	Integration models.Integration
	// Settings is the connection's non-secret configuration.
	Settings map[string]any
	// Credentials is the decrypted secret payload; each driver decodes its
	// own shape out of it.
	Credentials json.RawMessage
}

// Driver probes connectivity for one connection kind.
type Driver interface {
	Type() models.ConnectionType
	// Test verifies the connection is usable. A nil return means the probe
	// passed; any error is surfaced verbatim as the test failure reason.
	Test(ctx context.Context, in TestInput) error
}

// Registry stores drivers keyed by connection type with concurrency safety.
type Registry struct {
	mu      sync.RWMutex
	drivers map[models.ConnectionType]Driver
}

// NewRegistry constructs an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[models.ConnectionType]Driver)}
}

// Register adds a driver to the registry.
func (r *Registry) Register(driver Driver) error {
	if driver == nil {
		return ErrNilDriver
	}

	kind := driver.Type()
	if !kind.Valid() {
		return fmt.Errorf("connectors: invalid connection type %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[kind]; exists {
		return ErrDuplicateType
	}

	r.drivers[kind] = driver
	return nil
}

// MustRegister wraps Register and panics on validation errors. Intended for bootstrap usage.
func (r *Registry) MustRegister(driver Driver) {
	if err := r.Register(driver); err != nil {
		panic(err)
	}
}

// Resolve returns the driver for a connection type.
func (r *Registry) Resolve(kind models.ConnectionType) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}
	return driver, nil
}

// DefaultRegistry builds a registry with all four built-in drivers.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.MustRegister(NewOAuth2Driver(nil))
	registry.MustRegister(NewAPIKeyDriver(nil))
	registry.MustRegister(NewDatabaseDriver())
	registry.MustRegister(NewServiceAccountDriver())
	return registry
}
