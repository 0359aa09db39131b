package models

import (
	"time"
)

// NATS subjects for the ingestion event stream
const (
	SubjectJobRequested = "ingestion.job.requested"
	SubjectJobStarted   = "ingestion.job.started"
	SubjectJobCompleted = "ingestion.job.completed"
	SubjectJobFailed    = "ingestion.job.failed"
	StreamName          = "INGESTION_EVENTS"
)

// JobRequestedEvent is published by the orchestration layer to trigger an
// ingestion job. TenantID may be any external identifier; the subscriber
// normalizes it before use. Dates are calendar dates in YYYY-MM-DD form.
type JobRequestedEvent struct {
	TenantID  string   `json:"tenant_id"`
	JobID     string   `json:"job_id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	DataTypes []string `json:"data_types"`
}

// ToJobRequest parses the wire-level dates into a JobRequest
func (e *JobRequestedEvent) ToJobRequest() (JobRequest, error) {
	start, err := time.Parse("2006-01-02", e.StartDate)
	if err != nil {
		return JobRequest{}, err
	}
	end, err := time.Parse("2006-01-02", e.EndDate)
	if err != nil {
		return JobRequest{}, err
	}
	return JobRequest{StartDate: start, EndDate: end, DataTypes: e.DataTypes}, nil
}

// JobLifecycleEvent is published on job start and on every terminal status
type JobLifecycleEvent struct {
	TenantID         string                 `json:"tenant_id"`
	JobID            string                 `json:"job_id"`
	Status           string                 `json:"status"`
	RecordsProcessed map[string]interface{} `json:"records_processed,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}
