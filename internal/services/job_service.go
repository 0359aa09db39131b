package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/ingestion-service/internal/clients"
	"github.com/tesseract-hub/ingestion-service/internal/config"
	"github.com/tesseract-hub/ingestion-service/internal/events"
	"github.com/tesseract-hub/ingestion-service/internal/metrics"
	"github.com/tesseract-hub/ingestion-service/internal/models"
	"github.com/tesseract-hub/ingestion-service/internal/repository"
)

// ClientFactory yields per-tenant extractor clients; nil means the tenant
// has no usable configuration for that source.
type ClientFactory interface {
	WarehouseClient(ctx context.Context, tenantID string) clients.WarehouseExtractor
	SFTPClient(ctx context.Context, tenantID string) clients.LocationExtractor
}

// JobService runs ingestion jobs: extract per tenant, reclassify, load.
// Phases run sequentially (events, users, locations); the six per-type
// loads inside the events phase run concurrently, each in its own session.
type JobService struct {
	cfg       *config.JobConfig
	factory   ClientFactory
	jobs      repository.JobRepository
	events    repository.EventRepository
	locations repository.LocationRepository
	users     repository.UserRepository
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewJobService creates a new ingestion job service
func NewJobService(
	cfg *config.JobConfig,
	factory ClientFactory,
	jobs repository.JobRepository,
	eventRepo repository.EventRepository,
	locations repository.LocationRepository,
	users repository.UserRepository,
	publisher *events.Publisher,
	logger *logrus.Entry,
) *JobService {
	return &JobService{
		cfg:       cfg,
		factory:   factory,
		jobs:      jobs,
		events:    eventRepo,
		locations: locations,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateJob inserts the queued job row. The caller-chosen jobID is unique
// per tenant; a duplicate surfaces as a constraint error.
func (s *JobService) CreateJob(ctx context.Context, tenantID, jobID string, request models.JobRequest) (*models.ProcessingJob, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}

	job := &models.ProcessingJob{
		JobID:            jobID,
		TenantID:         tenantID,
		Status:           models.JobStatusQueued,
		DataTypes:        models.StringList(request.DataTypes),
		StartDate:        request.StartDate,
		EndDate:          request.EndDate,
		Progress:         models.JSONB{},
		RecordsProcessed: models.JSONB{},
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", jobID, err)
	}
	return job, nil
}

// GetJob returns the tenant's job row, or (nil, nil) when none exists.
// The subscriber uses it to recognize redeliveries before creating a row.
func (s *JobService) GetJob(ctx context.Context, tenantID, jobID string) (*models.ProcessingJob, error) {
	return s.jobs.GetByJobID(ctx, tenantID, jobID)
}

// RunJob executes a queued job to a terminal status. The final status
// update is always attempted, including on panic and on the wall-clock
// timeout; RunJob itself returns the fatal error, if any, for logging.
func (s *JobService) RunJob(ctx context.Context, tenantID, jobID string, request models.JobRequest) error {
	log := s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "job_id": jobID})
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- s.run(runCtx, log, tenantID, jobID, request)
	}()

	var runErr error
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		// Status writes must not use the expired context.
		timeoutMsg := fmt.Sprintf("Job timed out after %d minutes", int(s.cfg.Timeout.Minutes()))
		s.finishFailed(context.Background(), log, tenantID, jobID, timeoutMsg)
		metrics.JobsTotal.WithLabelValues(string(models.JobStatusFailed)).Inc()
		metrics.JobDuration.Observe(time.Since(started).Seconds())
		return fmt.Errorf("%s", timeoutMsg)
	}

	metrics.JobDuration.Observe(time.Since(started).Seconds())
	if runErr != nil {
		s.finishFailed(context.Background(), log, tenantID, jobID, runErr.Error())
		metrics.JobsTotal.WithLabelValues(string(models.JobStatusFailed)).Inc()
		return runErr
	}
	return nil
}

// run executes the phases and writes the successful terminal status. Any
// returned error is a classified, human-readable fatal failure.
func (s *JobService) run(ctx context.Context, log *logrus.Entry, tenantID, jobID string, request models.JobRequest) error {
	if err := s.jobs.MarkProcessing(ctx, tenantID, jobID); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if err := s.publisher.PublishJobStarted(ctx, tenantID, jobID); err != nil {
		log.WithError(err).Warn("could not publish job started event")
	}

	records := models.JSONB{}
	var warnings []string

	if request.Includes(models.DataTypeEvents) {
		warns, err := s.runEventsPhase(ctx, log, tenantID, jobID, request, records)
		if err != nil {
			return err
		}
		warnings = append(warnings, warns...)
	}

	if request.Includes(models.DataTypeUsers) {
		warns, err := s.runUsersPhase(ctx, log, tenantID, jobID, records)
		if err != nil {
			return err
		}
		warnings = append(warnings, warns...)
	}

	if request.Includes(models.DataTypeLocations) {
		warns, err := s.runLocationsPhase(ctx, log, tenantID, jobID, records)
		if err != nil {
			return err
		}
		warnings = append(warnings, warns...)
	}

	status := models.JobStatusCompleted
	if len(warnings) > 0 {
		status = models.JobStatusCompletedWithWarnings
		records["warnings"] = warnings
	}

	if err := s.jobs.MarkCompleted(ctx, tenantID, jobID, status, records); err != nil {
		return fmt.Errorf("failed to write terminal status: %w", err)
	}
	if err := s.publisher.PublishJobCompleted(ctx, tenantID, jobID, status, records); err != nil {
		log.WithError(err).Warn("could not publish job completed event")
	}

	metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	log.WithFields(logrus.Fields{"status": status, "warnings": len(warnings)}).Info("ingestion job finished")
	return nil
}

// runEventsPhase extracts all six event types, reclassifies, and loads each
// type concurrently. Per-type failures become warnings with a zero count; a
// missing warehouse client or a total extraction failure is fatal.
func (s *JobService) runEventsPhase(ctx context.Context, log *logrus.Entry, tenantID, jobID string, request models.JobRequest, records models.JSONB) ([]string, error) {
	if err := s.jobs.UpdateProgress(ctx, tenantID, jobID, models.DataTypeEvents); err != nil {
		log.WithError(err).Warn("could not update progress marker")
	}

	warehouse := s.factory.WarehouseClient(ctx, tenantID)
	if warehouse == nil {
		return nil, fmt.Errorf("Failed to extract events from BigQuery - ConfigMissing: warehouse is not configured for this tenant")
	}
	defer warehouse.Close()

	eventRows, typeErrs := warehouse.GetDateRangeEvents(ctx, request.StartDate, request.EndDate)
	if len(typeErrs) == len(models.EventTypes()) {
		// Every type failed; surface one representative root cause.
		for _, err := range typeErrs {
			return nil, fmt.Errorf("%s", ClassifyError("extract events", "BigQuery", err))
		}
	}

	Reclassify(eventRows)

	type typeResult struct {
		eventType string
		count     int
		err       error
	}

	results := make([]typeResult, len(models.EventTypes()))
	var wg sync.WaitGroup
	for i, eventType := range models.EventTypes() {
		wg.Add(1)
		go func(i int, eventType string) {
			defer wg.Done()
			results[i] = typeResult{eventType: eventType}

			if err, failed := typeErrs[eventType]; failed {
				results[i].err = err
				return
			}

			// An empty extraction still replaces the slice: the delete must
			// run so rows from a previous load of this range do not linger.
			rows := eventRows[eventType]
			mapped, err := mapEventRows(tenantID, eventType, rows)
			if err != nil {
				results[i].err = err
				return
			}
			if err := s.events.ReplaceDateRange(ctx, tenantID, eventType, request.StartDate, request.EndDate, mapped, s.cfg.BatchSize); err != nil {
				results[i].err = err
				return
			}
			results[i].count = len(rows)
		}(i, eventType)
	}
	wg.Wait()

	var warnings []string
	for _, result := range results {
		if result.err != nil {
			log.WithError(result.err).WithField("event_type", result.eventType).Warn("event type load failed")
			warnings = append(warnings, fmt.Sprintf("%s: %v", result.eventType, result.err))
			records[result.eventType] = 0
			continue
		}
		records[result.eventType] = result.count
		metrics.RecordsIngested.WithLabelValues(result.eventType).Add(float64(result.count))
	}
	return warnings, nil
}

// runUsersPhase loads dimensional users from the warehouse user table.
// An unset user table skips the phase with a zero count. Batch failures
// are isolated and counted.
func (s *JobService) runUsersPhase(ctx context.Context, log *logrus.Entry, tenantID, jobID string, records models.JSONB) ([]string, error) {
	if err := s.jobs.UpdateProgress(ctx, tenantID, jobID, models.DataTypeUsers); err != nil {
		log.WithError(err).Warn("could not update progress marker")
	}

	warehouse := s.factory.WarehouseClient(ctx, tenantID)
	if warehouse == nil || !warehouse.HasUserTable() {
		if warehouse != nil {
			warehouse.Close()
		}
		log.Info("no user table configured, skipping users phase")
		records[models.DataTypeUsers] = 0
		return nil, nil
	}
	defer warehouse.Close()

	rows, err := warehouse.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s", ClassifyError("extract users", "BigQuery", err))
	}

	userModels := mapUserRows(tenantID, rows)
	processed, failedBatches := s.upsertUsersInBatches(ctx, log, tenantID, userModels)

	records[models.DataTypeUsers] = processed
	metrics.RecordsIngested.WithLabelValues(models.DataTypeUsers).Add(float64(processed))

	if failedBatches > 0 {
		return []string{fmt.Sprintf("users: %d batch(es) failed to upsert", failedBatches)}, nil
	}
	return nil, nil
}

// runLocationsPhase loads dimensional locations from the SFTP spreadsheet.
// A missing SFTP client is fatal because the phase has no other source.
func (s *JobService) runLocationsPhase(ctx context.Context, log *logrus.Entry, tenantID, jobID string, records models.JSONB) ([]string, error) {
	if err := s.jobs.UpdateProgress(ctx, tenantID, jobID, models.DataTypeLocations); err != nil {
		log.WithError(err).Warn("could not update progress marker")
	}

	sftpClient := s.factory.SFTPClient(ctx, tenantID)
	if sftpClient == nil {
		return nil, fmt.Errorf("Failed to extract locations from SFTP server - ConfigMissing: SFTP is not configured for this tenant")
	}

	rows, err := sftpClient.GetLocations()
	if err != nil {
		return nil, fmt.Errorf("%s", ClassifyError("extract locations", "SFTP server", err))
	}

	locationModels := mapLocationRows(tenantID, rows)
	processed := 0
	failedBatches := 0
	for _, batch := range chunkLocations(locationModels, s.cfg.BatchSize) {
		if err := s.locations.UpsertBatch(ctx, tenantID, batch); err != nil {
			log.WithError(err).Warn("location batch upsert failed")
			failedBatches++
			continue
		}
		processed += len(batch)
	}

	records[models.DataTypeLocations] = processed
	metrics.RecordsIngested.WithLabelValues(models.DataTypeLocations).Add(float64(processed))

	if failedBatches > 0 {
		return []string{fmt.Sprintf("locations: %d batch(es) failed to upsert", failedBatches)}, nil
	}
	return nil, nil
}

func (s *JobService) upsertUsersInBatches(ctx context.Context, log *logrus.Entry, tenantID string, userModels []models.User) (int, int) {
	processed := 0
	failedBatches := 0
	for _, batch := range chunkUsers(userModels, s.cfg.BatchSize) {
		if err := s.users.UpsertBatch(ctx, tenantID, batch); err != nil {
			log.WithError(err).Warn("user batch upsert failed")
			failedBatches++
			continue
		}
		processed += len(batch)
	}
	return processed, failedBatches
}

// finishFailed writes the failed terminal status; failures to write it are
// logged, never raised.
func (s *JobService) finishFailed(ctx context.Context, log *logrus.Entry, tenantID, jobID, message string) {
	if err := s.jobs.MarkFailed(ctx, tenantID, jobID, message); err != nil {
		log.WithError(err).Error("could not write failed status")
	}
	if err := s.publisher.PublishJobFailed(ctx, tenantID, jobID, message); err != nil {
		log.WithError(err).Warn("could not publish job failed event")
	}
	log.WithField("error_message", message).Error("ingestion job failed")
}

func chunkUsers(items []models.User, size int) [][]models.User {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.User
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func chunkLocations(items []models.Location, size int) [][]models.Location {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.Location
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
