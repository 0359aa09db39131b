package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// JobRepository defines the interface for processing job data access.
// Every method runs in its own short-lived session so that status updates
// commit independently of the job's data transactions.
type JobRepository interface {
	Create(ctx context.Context, job *models.ProcessingJob) error
	GetByJobID(ctx context.Context, tenantID, jobID string) (*models.ProcessingJob, error)
	MarkProcessing(ctx context.Context, tenantID, jobID string) error
	UpdateProgress(ctx context.Context, tenantID, jobID, phase string) error
	MarkCompleted(ctx context.Context, tenantID, jobID string, status models.JobStatus, records models.JSONB) error
	MarkFailed(ctx context.Context, tenantID, jobID, errorMsg string) error
}

// jobRepository implements JobRepository
type jobRepository struct {
	router *database.Router
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(router *database.Router) JobRepository {
	return &jobRepository{router: router}
}

// Create creates a new processing job row in the tenant's database
func (r *jobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	return r.router.WithSession(ctx, job.TenantID, func(tx *gorm.DB) error {
		return tx.Create(job).Error
	})
}

// GetByJobID retrieves a job by its caller-chosen id. Returns (nil, nil)
// when the job does not exist.
func (r *jobRepository) GetByJobID(ctx context.Context, tenantID, jobID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	var found bool

	err := r.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND job_id = ?", tenantID, jobID).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &job, nil
}

// MarkProcessing transitions the job to processing and stamps started_at
func (r *jobRepository) MarkProcessing(ctx context.Context, tenantID, jobID string) error {
	now := time.Now().UTC()
	return r.update(ctx, tenantID, jobID, map[string]interface{}{
		"status":     models.JobStatusProcessing,
		"started_at": now,
	})
}

// UpdateProgress records the phase about to run. Advisory only; the marker
// is written before each I/O-bounded phase starts.
func (r *jobRepository) UpdateProgress(ctx context.Context, tenantID, jobID, phase string) error {
	return r.update(ctx, tenantID, jobID, map[string]interface{}{
		"progress": models.JSONB{"current": phase},
	})
}

// MarkCompleted writes a successful terminal status with per-type counts
func (r *jobRepository) MarkCompleted(ctx context.Context, tenantID, jobID string, status models.JobStatus, records models.JSONB) error {
	now := time.Now().UTC()
	return r.update(ctx, tenantID, jobID, map[string]interface{}{
		"status":            status,
		"records_processed": records,
		"completed_at":      now,
	})
}

// MarkFailed writes the failed terminal status with a human error message
func (r *jobRepository) MarkFailed(ctx context.Context, tenantID, jobID, errorMsg string) error {
	now := time.Now().UTC()
	return r.update(ctx, tenantID, jobID, map[string]interface{}{
		"status":        models.JobStatusFailed,
		"error_message": errorMsg,
		"completed_at":  now,
	})
}

func (r *jobRepository) update(ctx context.Context, tenantID, jobID string, updates map[string]interface{}) error {
	return r.router.WithSession(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Model(&models.ProcessingJob{}).
			Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
			Updates(updates).Error
	})
}
