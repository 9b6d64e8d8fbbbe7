package connectors

import (
	"context"

	"github.com/modelgrid/connecthub/internal/models"
)

// ServiceAccountDriver exists so the registry covers every connection kind.
// Service accounts are provisioned out of band; the store offers no creation
// protocol and no probe for them.
type ServiceAccountDriver struct{}

// NewServiceAccountDriver constructs the driver.
func NewServiceAccountDriver() *ServiceAccountDriver {
	return &ServiceAccountDriver{}
}

// Type implements Driver.
func (d *ServiceAccountDriver) Type() models.ConnectionType {
	return models.ConnectionTypeServiceAccount
}

// Test implements Driver.
func (d *ServiceAccountDriver) Test(ctx context.Context, in TestInput) error {
	return ErrUnsupported
}
