package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the lifecycle status of an ingestion job
type JobStatus string

const (
	JobStatusQueued                JobStatus = "queued"
	JobStatusProcessing            JobStatus = "processing"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusCompletedWithWarnings JobStatus = "completed_with_warnings"
	JobStatusFailed                JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithWarnings, JobStatusFailed:
		return true
	}
	return false
}

// Data types an ingestion job may request
const (
	DataTypeEvents    = "events"
	DataTypeUsers     = "users"
	DataTypeLocations = "locations"
)

// ValidDataTypes lists every data type a job may request, in phase order.
func ValidDataTypes() []string {
	return []string{DataTypeEvents, DataTypeUsers, DataTypeLocations}
}

// ProcessingJob tracks a single ingestion job from queued through a terminal
// status. The job row is owned by the job engine from creation onward.
type ProcessingJob struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	JobID    string    `gorm:"column:job_id;type:varchar(255);not null;uniqueIndex:idx_processing_jobs_tenant_job" json:"job_id"`
	TenantID string    `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:idx_processing_jobs_tenant_job" json:"tenant_id"`

	Status    JobStatus  `gorm:"type:varchar(50);not null;default:'queued';index:idx_processing_jobs_status" json:"status"`
	DataTypes StringList `gorm:"column:data_types;type:jsonb;not null" json:"data_types"`
	StartDate time.Time  `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate   time.Time  `gorm:"column:end_date;type:date;not null" json:"end_date"`

	// Progress is an advisory marker for the currently running sub-step;
	// it may be overwritten at any time and carries no guarantees.
	Progress         JSONB `gorm:"type:jsonb;not null;default:'{}'" json:"progress"`
	RecordsProcessed JSONB `gorm:"column:records_processed;type:jsonb;not null;default:'{}'" json:"records_processed"`

	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for ProcessingJob
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

// BeforeCreate sets UUID before creating record
func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// JobRequest describes what a single ingestion job should pull
type JobRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	DataTypes []string  `json:"data_types"`
}

// Validate checks the request against the job engine preconditions:
// start_date <= end_date and data_types a non-empty subset of the known set.
func (r *JobRequest) Validate() error {
	if r.StartDate.After(r.EndDate) {
		return fmt.Errorf("start_date %s is after end_date %s",
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	}
	if len(r.DataTypes) == 0 {
		return fmt.Errorf("data_types must not be empty")
	}
	for _, dt := range r.DataTypes {
		switch dt {
		case DataTypeEvents, DataTypeUsers, DataTypeLocations:
		default:
			return fmt.Errorf("unknown data type %q", dt)
		}
	}
	return nil
}

// Includes reports whether the request asks for the given data type
func (r *JobRequest) Includes(dataType string) bool {
	for _, dt := range r.DataTypes {
		if dt == dataType {
			return true
		}
	}
	return false
}
