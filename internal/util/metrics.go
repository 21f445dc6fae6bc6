package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders created at checkout",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_transitions_total",
		Help: "Order status transitions by target status",
	}, []string{"status"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_transitions_rejected_total",
		Help: "Rejected order status transitions",
	}, []string{"reason"})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_deleted_total",
		Help: "Total number of orders removed from the ledger",
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_adjustments_total",
		Help: "Inventory transactions appended, by type",
	}, []string{"type"})

	StockDeductionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_deduction_failures_total",
		Help: "Stock changes rejected before any mutation",
	}, []string{"reason"})

	RemoteSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_remote_sync_failures_total",
		Help: "Best-effort remote store writes that failed",
	}, []string{"collection", "operation"})

	LocalWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_local_write_failures_total",
		Help: "Durable store or cache writes that failed",
	}, []string{"tier", "key"})

	CatalogLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_catalog_loads_total",
		Help: "Catalog loads by the tier that served them",
	}, []string{"tier"})

	CatalogRefreshLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_catalog_refresh_latency_seconds",
		Help:    "Latency of catalog refreshes from the remote store",
		Buckets: prometheus.DefBuckets,
	})

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
