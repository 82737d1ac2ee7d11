// Package metrics holds the Prometheus instruments of the pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rapidphoto"

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "jobs_total",
		Help:      "Photo jobs by terminal outcome.",
	}, []string{"outcome", "owner_id"})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "Wall time of one photo job, gate to terminal state.",
		Buckets:   prometheus.DefBuckets,
	})

	RenditionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "renditions_total",
		Help:      "Rendition attempts by result.",
	}, []string{"result"})

	LabelsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "labels_detected_total",
		Help:      "Labels returned by the vision service.",
	})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "notify_failures_total",
		Help:      "Best-effort completion notifications that did not land.",
	})

	BatchRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "records_total",
		Help:      "Inbound records by batch-level result.",
	}, []string{"result"})
)
