package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished ingestion jobs by terminal status
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_jobs_total",
		Help: "Finished ingestion jobs by terminal status",
	}, []string{"status"})

	// JobDuration observes wall-clock job duration in seconds
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_job_duration_seconds",
		Help:    "Wall-clock duration of ingestion jobs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// RecordsIngested counts loaded records by data type or event type
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_records_total",
		Help: "Records loaded into tenant databases",
	}, []string{"type"})

	// ProvisionsTotal counts tenant database provisioning attempts
	ProvisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_provisions_total",
		Help: "Tenant database provisioning attempts by outcome",
	}, []string{"outcome"})
)
