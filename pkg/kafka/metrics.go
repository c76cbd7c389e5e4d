package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeReceived     = "received"
	OutcomeProcessed    = "processed"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
	OutcomePublished    = "published"
	OutcomeError        = "error"
)

const (
	metricsNamespace = "erp"
	metricsSubsystem = "kafka"
)

var latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

var (
	// ConsumerMessages counts consumed messages by outcome. A message is counted
	// once as received and once more as processed, failed or dead_lettered.
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "consumer_messages_total",
			Help:      "Kafka messages handled by consumers, by outcome",
		},
		[]string{"topic", "consumer_group", "outcome"},
	)

	// ConsumerRetries counts handler attempts after the first.
	ConsumerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "consumer_retries_total",
			Help:      "Kafka handler retries after a retryable failure",
		},
		[]string{"topic", "consumer_group"},
	)

	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "consumer_processing_duration_seconds",
			Help:      "Time spent in the handler per message, retries included",
			Buckets:   latencyBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerDuplicates counts events skipped by IdempotentHandler.
	ConsumerDuplicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "consumer_duplicates_total",
			Help:      "Events skipped because their id was already processed",
		},
		[]string{"event_type"},
	)

	ProducerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "producer_messages_total",
			Help:      "Kafka publish attempts, by outcome",
		},
		[]string{"topic", "outcome"},
	)

	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "producer_publish_duration_seconds",
			Help:      "Duration of Kafka publish calls",
			Buckets:   latencyBuckets,
		},
		[]string{"topic"},
	)
)
