package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/tesseract-hub/ingestion-service/internal/database"
	"github.com/tesseract-hub/ingestion-service/internal/models"
	natsClient "github.com/tesseract-hub/ingestion-service/internal/nats"
	"github.com/tesseract-hub/ingestion-service/internal/services"
	"github.com/tesseract-hub/ingestion-service/internal/tenant"
)

const (
	consumerName = "ingestion-consumer"
	queueGroup   = "ingestion-workers"
)

// Subscriber consumes job request events and drives them to completion.
// Messages are acked as soon as the queued job row exists; the job itself
// runs in the background so redeliveries never re-run a long job.
type Subscriber struct {
	client      *natsClient.Client
	provisioner *database.Provisioner
	jobs        *services.JobService
	logger      *logrus.Entry
	subs        []*nats.Subscription
}

// NewSubscriber creates a new ingestion job subscriber
func NewSubscriber(client *natsClient.Client, provisioner *database.Provisioner, jobs *services.JobService, logger *logrus.Logger) *Subscriber {
	return &Subscriber{
		client:      client,
		provisioner: provisioner,
		jobs:        jobs,
		logger:      logger.WithField("component", "nats.subscriber"),
	}
}

// Start begins consuming job request events. The queue group distributes
// requests across replicas; each message is delivered to one worker.
func (s *Subscriber) Start(ctx context.Context) error {
	var sub *nats.Subscription
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		sub, err = s.client.JetStream().QueueSubscribe(
			models.SubjectJobRequested,
			queueGroup,
			s.handleJobRequested,
			nats.Durable(consumerName),
			nats.DeliverNew(),
			nats.ManualAck(),
			nats.AckWait(60*time.Second),
			nats.MaxDeliver(5),
			nats.MaxAckPending(10),
			nats.BindStream(models.StreamName),
		)
		if err == nil {
			break
		}
		s.logger.WithError(err).WithField("attempt", attempt).Warn("subscribe failed, retrying")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", models.SubjectJobRequested, err)
	}

	s.subs = append(s.subs, sub)
	s.logger.WithFields(logrus.Fields{
		"subject": models.SubjectJobRequested,
		"stream":  models.StreamName,
		"queue":   queueGroup,
	}).Info("subscribed to job requests")
	return nil
}

// handleJobRequested validates a request, provisions the tenant database if
// needed, creates the queued job row, acks, and runs the job.
func (s *Subscriber) handleJobRequested(msg *nats.Msg) {
	var event models.JobRequestedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.WithError(err).Error("malformed job request, dropping")
		msg.Ack()
		return
	}

	tenantID := tenant.Normalize(event.TenantID)
	log := s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"job_id":    event.JobID,
	})

	request, err := event.ToJobRequest()
	if err != nil {
		log.WithError(err).Error("job request has invalid dates, dropping")
		msg.Ack()
		return
	}
	if err := request.Validate(); err != nil {
		log.WithError(err).Error("job request failed validation, dropping")
		msg.Ack()
		return
	}

	ctx := context.Background()
	if _, err := s.provisioner.Provision(ctx, tenantID, false); err != nil {
		log.WithError(err).Error("tenant provisioning failed, requeueing")
		msg.Nak()
		return
	}

	// A redelivery after a slow ack arrives with the job row already in
	// place; re-running it would double-load the date range.
	if existing, err := s.jobs.GetJob(ctx, tenantID, event.JobID); err == nil && existing != nil {
		log.WithField("status", existing.Status).Info("job already exists, dropping redelivery")
		msg.Ack()
		return
	}

	if _, err := s.jobs.CreateJob(ctx, tenantID, event.JobID, request); err != nil {
		// Usually a duplicate job_id from a racing worker; never requeue.
		log.WithError(err).Warn("could not create job row, dropping")
		msg.Ack()
		return
	}
	msg.Ack()

	go func() {
		if err := s.jobs.RunJob(ctx, tenantID, event.JobID, request); err != nil {
			log.WithError(err).Error("ingestion job failed")
		}
	}()
}

// Stop drains subscriptions so the consumer binding is released cleanly
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if sub.IsValid() {
			if err := sub.Drain(); err != nil {
				s.logger.WithError(err).Warn("failed to drain subscription")
			}
		}
	}
}
