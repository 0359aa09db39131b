package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseract-hub/ingestion-service/internal/clients"
	"github.com/tesseract-hub/ingestion-service/internal/config"
	"github.com/tesseract-hub/ingestion-service/internal/models"
	"github.com/tesseract-hub/ingestion-service/internal/repository"
)

// nilFactory simulates a tenant with no usable source configuration
type nilFactory struct{}

func (nilFactory) WarehouseClient(context.Context, string) clients.WarehouseExtractor { return nil }

func (nilFactory) SFTPClient(context.Context, string) clients.LocationExtractor { return nil }

// fakeFactory hands out canned extractors
type fakeFactory struct {
	warehouse clients.WarehouseExtractor
	sftp      clients.LocationExtractor
}

func (f fakeFactory) WarehouseClient(context.Context, string) clients.WarehouseExtractor {
	return f.warehouse
}

func (f fakeFactory) SFTPClient(context.Context, string) clients.LocationExtractor {
	return f.sftp
}

// fakeWarehouse returns canned extraction results
type fakeWarehouse struct {
	events    map[string][]clients.EventRow
	typeErrs  map[string]error
	users     []clients.EventRow
	usersErr  error
	userTable bool
	closed    bool
}

func (f *fakeWarehouse) HasUserTable() bool { return f.userTable }

func (f *fakeWarehouse) GetDateRangeEvents(ctx context.Context, start, end time.Time) (map[string][]clients.EventRow, map[string]error) {
	events := f.events
	if events == nil {
		events = map[string][]clients.EventRow{}
	}
	return events, f.typeErrs
}

func (f *fakeWarehouse) GetUsers(ctx context.Context) ([]clients.EventRow, error) {
	return f.users, f.usersErr
}

func (f *fakeWarehouse) Close() error {
	f.closed = true
	return nil
}

// recordingEventRepository captures what each event type's load received
type recordingEventRepository struct {
	mu       sync.Mutex
	replaced map[string]interface{}
}

func newRecordingEventRepository() *recordingEventRepository {
	return &recordingEventRepository{replaced: make(map[string]interface{})}
}

func (r *recordingEventRepository) ReplaceDateRange(ctx context.Context, tenantID, eventType string, startDate, endDate time.Time, records interface{}, batchSize int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced[eventType] = records
	return nil
}

func (r *recordingEventRepository) get(eventType string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaced[eventType]
}

// memoryJobRepository records job state transitions in memory
type memoryJobRepository struct {
	mu      sync.Mutex
	jobs    map[string]*models.ProcessingJob
	failOps bool
}

func newMemoryJobRepository() *memoryJobRepository {
	return &memoryJobRepository{jobs: make(map[string]*models.ProcessingJob)}
}

func (r *memoryJobRepository) get(jobID string) *models.ProcessingJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[jobID]
}

func (r *memoryJobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOps {
		return errors.New("create failed")
	}
	if _, exists := r.jobs[job.JobID]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	r.jobs[job.JobID] = job
	return nil
}

func (r *memoryJobRepository) GetByJobID(ctx context.Context, tenantID, jobID string) (*models.ProcessingJob, error) {
	return r.get(jobID), nil
}

func (r *memoryJobRepository) MarkProcessing(ctx context.Context, tenantID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		now := time.Now().UTC()
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
	}
	return nil
}

func (r *memoryJobRepository) UpdateProgress(ctx context.Context, tenantID, jobID, phase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		job.Progress = models.JSONB{"current": phase}
	}
	return nil
}

func (r *memoryJobRepository) MarkCompleted(ctx context.Context, tenantID, jobID string, status models.JobStatus, records models.JSONB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		now := time.Now().UTC()
		job.Status = status
		job.RecordsProcessed = records
		job.CompletedAt = &now
	}
	return nil
}

func (r *memoryJobRepository) MarkFailed(ctx context.Context, tenantID, jobID, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		now := time.Now().UTC()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = errorMsg
		job.CompletedAt = &now
	}
	return nil
}

func testJobService(repo *memoryJobRepository) *JobService {
	return testJobServiceWith(repo, nilFactory{}, nil)
}

func testJobServiceWith(repo *memoryJobRepository, factory ClientFactory, eventRepo repository.EventRepository) *JobService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewJobService(
		&config.JobConfig{Timeout: 30 * time.Minute, BatchSize: 500},
		factory,
		repo, eventRepo, nil, nil,
		nil, // publisher is nil-safe
		logger.WithField("component", "services.job"),
	)
}

func testRequest(dataTypes ...string) models.JobRequest {
	return models.JobRequest{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		DataTypes: dataTypes,
	}
}

func TestCreateJobQueuesRow(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)

	job, err := svc.CreateJob(context.Background(), testTenant, "job-1", testRequest(models.DataTypeEvents))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, models.StringList{models.DataTypeEvents}, job.DataTypes)
	assert.NotNil(t, repo.get("job-1"))
}

func TestCreateJobRejectsInvalidRequest(t *testing.T) {
	svc := testJobService(newMemoryJobRepository())

	_, err := svc.CreateJob(context.Background(), testTenant, "job-1", models.JobRequest{
		StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DataTypes: []string{models.DataTypeEvents},
	})
	assert.Error(t, err)
}

func TestRunJobUsersPhaseSkipsWithoutUserTable(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)
	request := testRequest(models.DataTypeUsers)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-users", request)
	require.NoError(t, err)

	err = svc.RunJob(context.Background(), testTenant, "job-users", request)
	require.NoError(t, err)

	job := repo.get("job-users")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.RecordsProcessed[models.DataTypeUsers])
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.StartedAt)
	assert.False(t, job.CompletedAt.Before(*job.StartedAt))
}

func TestRunJobEventsPhaseFatalWithoutWarehouse(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)
	request := testRequest(models.DataTypeEvents)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-events", request)
	require.NoError(t, err)

	err = svc.RunJob(context.Background(), testTenant, "job-events", request)
	require.Error(t, err)

	job := repo.get("job-events")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "Failed to extract events from BigQuery")
	require.NotNil(t, job.CompletedAt)
}

func TestRunJobLocationsPhaseFatalWithoutSFTP(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)
	request := testRequest(models.DataTypeLocations)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-locations", request)
	require.NoError(t, err)

	err = svc.RunJob(context.Background(), testTenant, "job-locations", request)
	require.Error(t, err)

	job := repo.get("job-locations")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "Failed to extract locations from SFTP server")
}

func TestRunJobProgressMarkerWrittenBeforePhase(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)
	request := testRequest(models.DataTypeUsers)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-progress", request)
	require.NoError(t, err)

	require.NoError(t, svc.RunJob(context.Background(), testTenant, "job-progress", request))

	job := repo.get("job-progress")
	require.NotNil(t, job)
	assert.Equal(t, models.DataTypeUsers, job.Progress["current"])
}

func TestRunJobEventsPhaseReclassifiesBeforeLoad(t *testing.T) {
	repo := newMemoryJobRepository()
	eventRepo := newRecordingEventRepository()
	warehouse := &fakeWarehouse{
		events: map[string][]clients.EventRow{
			models.EventTypeNoSearchResults: {
				{
					"event_date":                   "20240101",
					"event_timestamp":              "1704103200000000",
					"user_pseudo_id":               "user-1",
					"param_page_title":             "Search - No Results Found",
					"param_no_search_results_term": "unobtainium",
				},
				{
					"event_date":                   "20240101",
					"event_timestamp":              "1704103300000000",
					"user_pseudo_id":               "user-2",
					"param_page_title":             "Search Results",
					"param_no_search_results_term": "hammers",
				},
			},
		},
	}
	svc := testJobServiceWith(repo, fakeFactory{warehouse: warehouse}, eventRepo)
	request := testRequest(models.DataTypeEvents)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-reclass", request)
	require.NoError(t, err)
	require.NoError(t, svc.RunJob(context.Background(), testTenant, "job-reclass", request))

	job := repo.get("job-reclass")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.RecordsProcessed[models.EventTypeNoSearchResults])
	assert.Equal(t, 1, job.RecordsProcessed[models.EventTypeViewSearchResults])

	kept, ok := eventRepo.get(models.EventTypeNoSearchResults).([]models.NoSearchResultsEvent)
	require.True(t, ok)
	require.Len(t, kept, 1)
	require.NotNil(t, kept[0].NoSearchResultsTerm)
	assert.Equal(t, "unobtainium", *kept[0].NoSearchResultsTerm)

	moved, ok := eventRepo.get(models.EventTypeViewSearchResults).([]models.ViewSearchResultsEvent)
	require.True(t, ok)
	require.Len(t, moved, 1)
	require.NotNil(t, moved[0].SearchTerm)
	assert.Equal(t, "hammers", *moved[0].SearchTerm)

	assert.True(t, warehouse.closed)
}

func TestRunJobEventsPhasePartialFailureWarns(t *testing.T) {
	repo := newMemoryJobRepository()
	eventRepo := newRecordingEventRepository()
	warehouse := &fakeWarehouse{
		events: map[string][]clients.EventRow{
			models.EventTypePurchase: {
				{
					"event_date":                 "20240101",
					"event_timestamp":            "1704103200000000",
					"user_pseudo_id":             "user-1",
					"param_transaction_id":       "T-100",
					"ecommerce_purchase_revenue": 129.99,
				},
			},
		},
		typeErrs: map[string]error{
			models.EventTypeAddToCart: errors.New("quota exceeded"),
		},
	}
	svc := testJobServiceWith(repo, fakeFactory{warehouse: warehouse}, eventRepo)
	request := testRequest(models.DataTypeEvents)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-partial", request)
	require.NoError(t, err)
	require.NoError(t, svc.RunJob(context.Background(), testTenant, "job-partial", request))

	job := repo.get("job-partial")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusCompletedWithWarnings, job.Status)
	assert.Equal(t, 1, job.RecordsProcessed[models.EventTypePurchase])
	assert.Equal(t, 0, job.RecordsProcessed[models.EventTypeAddToCart])

	warnings, ok := job.RecordsProcessed["warnings"].([]string)
	require.True(t, ok)
	assert.Contains(t, warnings, "add_to_cart: quota exceeded")

	// A failed type must not touch its table at all.
	assert.Nil(t, eventRepo.get(models.EventTypeAddToCart))
}

func TestRunJobEventsPhaseEmptyExtractionClearsSlice(t *testing.T) {
	repo := newMemoryJobRepository()
	eventRepo := newRecordingEventRepository()
	warehouse := &fakeWarehouse{}
	svc := testJobServiceWith(repo, fakeFactory{warehouse: warehouse}, eventRepo)
	request := testRequest(models.DataTypeEvents)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-empty", request)
	require.NoError(t, err)
	require.NoError(t, svc.RunJob(context.Background(), testTenant, "job-empty", request))

	job := repo.get("job-empty")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	// Every type's slice is still replaced so stale rows from an earlier
	// load of this range are deleted.
	for _, eventType := range models.EventTypes() {
		records := eventRepo.get(eventType)
		require.NotNil(t, records, eventType)
		assert.Equal(t, 0, reflect.ValueOf(records).Len(), eventType)
		assert.Equal(t, 0, job.RecordsProcessed[eventType], eventType)
	}
}

func TestGetJobReturnsExistingRow(t *testing.T) {
	repo := newMemoryJobRepository()
	svc := testJobService(repo)
	request := testRequest(models.DataTypeEvents)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-lookup", request)
	require.NoError(t, err)

	job, err := svc.GetJob(context.Background(), testTenant, "job-lookup")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	missing, err := svc.GetJob(context.Background(), testTenant, "job-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// stuckJobRepository blocks MarkProcessing until the test releases it,
// simulating a phase that outlives the configured timeout.
type stuckJobRepository struct {
	*memoryJobRepository
	release chan struct{}
}

func (r *stuckJobRepository) MarkProcessing(ctx context.Context, tenantID, jobID string) error {
	<-r.release
	return ctx.Err()
}

func TestRunJobTimeoutWritesFailedStatus(t *testing.T) {
	repo := &stuckJobRepository{
		memoryJobRepository: newMemoryJobRepository(),
		release:             make(chan struct{}),
	}
	t.Cleanup(func() { close(repo.release) })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewJobService(
		&config.JobConfig{Timeout: 20 * time.Millisecond, BatchSize: 500},
		nilFactory{},
		repo, nil, nil, nil,
		nil,
		logger.WithField("component", "services.job"),
	)
	request := testRequest(models.DataTypeUsers)

	_, err := svc.CreateJob(context.Background(), testTenant, "job-timeout", request)
	require.NoError(t, err)

	err = svc.RunJob(context.Background(), testTenant, "job-timeout", request)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Job timed out after")

	job := repo.get("job-timeout")
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}
