package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/ingestion-service/internal/models"
	"github.com/tesseract-hub/ingestion-service/internal/nats"
)

// Publisher publishes job lifecycle events to the ingestion stream. A nil
// NATS client disables publishing without failing the job.
type Publisher struct {
	client *nats.Client
	logger *logrus.Entry
}

// NewPublisher creates a new lifecycle event publisher
func NewPublisher(client *nats.Client, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.WithField("component", "events.publisher"),
	}
}

// PublishJobStarted announces that a job left the queued state
func (p *Publisher) PublishJobStarted(ctx context.Context, tenantID, jobID string) error {
	return p.publish(ctx, models.SubjectJobStarted, models.JobLifecycleEvent{
		TenantID:  tenantID,
		JobID:     jobID,
		Status:    string(models.JobStatusProcessing),
		Timestamp: time.Now().UTC(),
	})
}

// PublishJobCompleted announces a successful terminal status with counts
func (p *Publisher) PublishJobCompleted(ctx context.Context, tenantID, jobID string, status models.JobStatus, records map[string]interface{}) error {
	return p.publish(ctx, models.SubjectJobCompleted, models.JobLifecycleEvent{
		TenantID:         tenantID,
		JobID:            jobID,
		Status:           string(status),
		RecordsProcessed: records,
		Timestamp:        time.Now().UTC(),
	})
}

// PublishJobFailed announces the failed terminal status
func (p *Publisher) PublishJobFailed(ctx context.Context, tenantID, jobID, errorMsg string) error {
	return p.publish(ctx, models.SubjectJobFailed, models.JobLifecycleEvent{
		TenantID:     tenantID,
		JobID:        jobID,
		Status:       string(models.JobStatusFailed),
		ErrorMessage: errorMsg,
		Timestamp:    time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event models.JobLifecycleEvent) error {
	if p == nil || p.client == nil || !p.client.IsConnected() {
		if p != nil {
			p.logger.Warn("NATS not connected, skipping lifecycle event")
		}
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	ack, err := p.client.JetStream().Publish(subject, data, natsgo.Context(ctx))
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"tenant_id": event.TenantID,
			"job_id":    event.JobID,
			"subject":   subject,
		}).WithError(err).Error("Failed to publish lifecycle event")
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"tenant_id": event.TenantID,
		"job_id":    event.JobID,
		"subject":   subject,
		"sequence":  ack.Sequence,
	}).Debug("Published lifecycle event")

	return nil
}
