// Package metrics declares the Prometheus collectors for the newsletter
// engine. Collectors are package-level and registered via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Subscription lifecycle metrics
var (
	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_subscriptions_total",
			Help: "Total number of subscription lifecycle events",
		},
		[]string{"event"}, // subscribed, reissued, unsubscribed
	)

	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_confirmations_total",
			Help: "Total number of confirmation attempts",
		},
		[]string{"result"}, // confirmed, rejected
	)
)

// Dispatch metrics
var (
	DispatchRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_dispatch_recipients_total",
			Help: "Total number of per-recipient dispatch outcomes",
		},
		[]string{"result"}, // sent, failed, timeout, cancelled
	)

	DispatchBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_dispatch_batch_duration_seconds",
			Help:    "Duration of complete dispatch batches",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	DispatchBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_dispatch_batches_total",
			Help: "Total number of dispatch batches run",
		},
	)
)

// Queue metrics
var (
	PublishEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_publish_events_total",
			Help: "Total number of publish events processed by the worker",
		},
		[]string{"status"}, // dispatched, failed, dlq
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsletter_queue_depth",
			Help: "Number of publish events waiting in the queue",
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
