package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_registered_total",
		Help: "Total number of accounts created",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_refreshes_total",
		Help: "Access token refresh attempts by result",
	}, []string{"result"})

	CheckoutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of checkouts created",
	})

	CheckoutTotalMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_total_mismatches_total",
		Help: "Checkouts whose client-supplied total differed from the catalog total",
	})

	PaymentsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_accepted_total",
		Help: "Total number of checkouts marked paid",
	})

	PaymentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_rejected_total",
		Help: "Payment updates rejected, by reason",
	}, []string{"reason"})

	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Total number of checkouts converted to orders",
	})

	FinalizeFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finalize_failed_total",
		Help: "Finalize attempts that did not produce an order, by reason",
	}, []string{"reason"})

	FinalizeCartCleanupFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finalize_cart_cleanup_failed_total",
		Help: "Finalized orders whose cart could not be deleted",
	})

	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finalize_latency_seconds",
		Help:    "Latency of checkout finalization",
		Buckets: prometheus.DefBuckets,
	})

	DirectOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "direct_orders_total",
		Help: "Total number of orders created without a checkout",
	})

	ProductCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Domain events that could not be published",
	}, []string{"event_type"})

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
