package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/modelgrid/connecthub/pkg/errors"

	"github.com/modelgrid/connecthub/internal/models"
)

const (
	defaultCatalogPageSize = 100
	maxCatalogPageSize     = 500
)

// CatalogListOptions controls filtering and pagination when browsing
// the integration catalog.
type CatalogListOptions struct {
	Category string
	Search   string
	Page     int
	PageSize int
}

// CatalogService exposes the catalog of available integrations.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *gorm.DB) (*CatalogService, error) {
	if db == nil {
		return nil, errors.New("catalog service: db is required")
	}
	return &CatalogService{db: db}, nil
}

// List returns catalog integrations ordered by display name. Entries
// without a connection type are bundled capabilities and are excluded.
func (s *CatalogService) List(ctx context.Context, opts CatalogListOptions) ([]models.Integration, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := sanitizePageSize(opts.PageSize, defaultCatalogPageSize, maxCatalogPageSize)

	query := s.db.WithContext(ctx).Model(&models.Integration{}).
		Where("connection_type IS NOT NULL")

	if category := strings.TrimSpace(opts.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(display_name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("catalog service: count integrations: %w", err)
	}

	var results []models.Integration
	err := query.
		Order("display_name ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("catalog service: list integrations: %w", err)
	}

	return results, total, nil
}

// Get returns a single integration by its identifier.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Integration, error) {
	ctx = ensureContext(ctx)

	var integration models.Integration
	err := s.db.WithContext(ctx).First(&integration, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("catalog service: load integration: %w", err)
	}
	return &integration, nil
}

// GetByName returns a single integration by its unique name.
func (s *CatalogService) GetByName(ctx context.Context, name string) (*models.Integration, error) {
	ctx = ensureContext(ctx)

	var integration models.Integration
	err := s.db.WithContext(ctx).First(&integration, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("catalog service: load integration: %w", err)
	}
	return &integration, nil
}
