package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_created_total",
		Help: "Total number of pipeline jobs created",
	}, []string{"type"})

	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_completed_total",
		Help: "Total number of pipeline jobs completed",
	}, []string{"type"})

	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_failed_total",
		Help: "Total number of pipeline jobs failed",
	}, []string{"type"})

	JobsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_cancelled_total",
		Help: "Total number of pipeline jobs cancelled",
	}, []string{"type"})

	PipelineBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_batch_duration_seconds",
		Help:    "Duration of one pipeline batch",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	PipelineItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_items_processed_total",
		Help: "Total catalog records processed by the pipeline",
	}, []string{"type"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	FulfillmentSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_submissions_total",
		Help: "Total number of order-level fulfillment submissions",
	}, []string{"result"})

	FulfillmentItemErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_item_errors_total",
		Help: "Total number of per-item fulfillment submission errors",
	})

	FulfillmentSubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_submit_latency_seconds",
		Help:    "Latency of one external fulfillment submission",
		Buckets: prometheus.DefBuckets,
	})

	PaymentWebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Total number of payment webhooks received",
	}, []string{"status"})

	PaymentWebhookDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_webhook_duplicates_total",
		Help: "Total number of duplicate payment webhook deliveries",
	})

	SupplierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplier_requests_total",
		Help: "Total number of supplier feed requests",
	}, []string{"endpoint", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
