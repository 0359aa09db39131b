package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// UserRepository defines the interface for user upserts. Same batch
// isolation contract as LocationRepository: one session per batch.
type UserRepository interface {
	UpsertBatch(ctx context.Context, tenantID string, users []models.User) error
}

// userRepository implements UserRepository
type userRepository struct {
	router *database.Router
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(router *database.Router) UserRepository {
	return &userRepository{router: router}
}

// UpsertBatch upserts one batch of users keyed on (tenant_id, user_id)
func (r *userRepository) UpsertBatch(ctx context.Context, tenantID string, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	return r.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "first_name", "last_name", "phone", "zip", "branch_id",
				"signup_date", "last_login_at", "raw_data", "updated_at",
			}),
		}).Create(&users).Error
	})
}
