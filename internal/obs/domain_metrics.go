package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DiscountEvaluationsTotal counts discount function evaluations by outcome.
	DiscountEvaluationsTotal *prometheus.CounterVec
	// VATValidationsTotal counts VAT validation outcomes (valid, invalid, service_error, timeout, cached).
	VATValidationsTotal *prometheus.CounterVec
	// GraphQLRequestsTotal counts Admin API GraphQL calls by operation and result.
	GraphQLRequestsTotal *prometheus.CounterVec
	// GraphQLLatency records Admin API GraphQL latency in milliseconds.
	GraphQLLatency *prometheus.HistogramVec
	// TaxRateSyncTotal counts tax-rate function configuration pushes.
	TaxRateSyncTotal *prometheus.CounterVec
	// QueueProcessedTotal counts background tasks handled by the worker.
	QueueProcessedTotal *prometheus.CounterVec
	// QueueEnqueuedTotal counts background task submissions by outcome.
	QueueEnqueuedTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests refused with 429 by limit name.
	RateLimitedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DiscountEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_evaluations_total",
			Help:      "Count of bulk discount evaluations by result.",
		}, []string{"result"})
		VATValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vat_validations_total",
			Help:      "Count of VAT number validations by status.",
		}, []string{"status"})
		GraphQLRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopify_graphql_requests_total",
			Help:      "Count of Shopify Admin GraphQL requests by operation and result.",
		}, []string{"operation", "result"})
		GraphQLLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shopify_graphql_duration_ms",
			Help:      "Latency of Shopify Admin GraphQL requests in milliseconds.",
			Buckets:   DefaultLatencyBucketsMS,
		}, []string{"operation"})
		TaxRateSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_rate_sync_total",
			Help:      "Count of tax-rate function configuration syncs by result.",
		}, []string{"result"})

		QueueProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_processed_total",
			Help:      "Total tasks processed grouped by status",
		}, []string{"kind", "status"})
		QueueEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_enqueued_total",
			Help:      "Total task submissions grouped by outcome",
		}, []string{"kind", "result"})
		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by a rate limit.",
		}, []string{"limit"})

		DiscountEvaluationsTotal = registerOrReuse(reg, DiscountEvaluationsTotal)
		VATValidationsTotal = registerOrReuse(reg, VATValidationsTotal)
		GraphQLRequestsTotal = registerOrReuse(reg, GraphQLRequestsTotal)
		GraphQLLatency = registerOrReuse(reg, GraphQLLatency)
		TaxRateSyncTotal = registerOrReuse(reg, TaxRateSyncTotal)
		QueueProcessedTotal = registerOrReuse(reg, QueueProcessedTotal)
		QueueEnqueuedTotal = registerOrReuse(reg, QueueEnqueuedTotal)
		RateLimitedTotal = registerOrReuse(reg, RateLimitedTotal)
	})
}
