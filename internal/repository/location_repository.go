package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// LocationRepository defines the interface for location upserts. Each batch
// runs in its own session so a constraint violation in one batch cannot
// poison sibling batches.
type LocationRepository interface {
	UpsertBatch(ctx context.Context, tenantID string, locations []models.Location) error
}

// locationRepository implements LocationRepository
type locationRepository struct {
	router *database.Router
}

// NewLocationRepository creates a new LocationRepository
func NewLocationRepository(router *database.Router) LocationRepository {
	return &locationRepository{router: router}
}

// UpsertBatch upserts one batch of locations keyed on (tenant_id,
// warehouse_id), refreshing the descriptive fields on conflict.
func (r *locationRepository) UpsertBatch(ctx context.Context, tenantID string, locations []models.Location) error {
	if len(locations) == 0 {
		return nil
	}

	return r.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "warehouse_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"warehouse_code", "warehouse_name",
				"city", "state", "country", "address1", "address2", "zip",
				"is_active", "updated_at",
			}),
		}).Create(&locations).Error
	})
}
