package repository

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// EventRepository defines the interface for event table loading. Loading is
// replace-by-slice: existing rows for the (tenant, date range) are deleted
// and the new extraction inserted in the same transaction, so a failed load
// leaves the previous slice intact.
type EventRepository interface {
	ReplaceDateRange(ctx context.Context, tenantID, eventType string, startDate, endDate time.Time, records interface{}, batchSize int) error
}

// eventRepository implements EventRepository
type eventRepository struct {
	router *database.Router
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(router *database.Router) EventRepository {
	return &eventRepository{router: router}
}

// ReplaceDateRange deletes the (tenant, event_date range) slice of the event
// type's table and inserts records in batches, all in one session. records
// must be a slice of the matching event model; insertion order is preserved
// per batch.
func (r *eventRepository) ReplaceDateRange(ctx context.Context, tenantID, eventType string, startDate, endDate time.Time, records interface{}, batchSize int) error {
	table, ok := models.EventTableName(eventType)
	if !ok {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	return r.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		err := tx.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ? AND event_date BETWEEN ? AND ?", table),
			tenantID, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"),
		).Error
		if err != nil {
			return fmt.Errorf("failed to clear %s slice: %w", table, err)
		}

		// An empty extraction is a pure delete; gorm rejects empty slices.
		if v := reflect.ValueOf(records); v.Kind() == reflect.Slice && v.Len() == 0 {
			return nil
		}

		if err := tx.CreateInBatches(records, batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		return nil
	})
}
