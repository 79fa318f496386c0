package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders placed",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	OrdersReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_replayed_total",
		Help: "Total number of checkouts answered from an idempotency key",
	})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of order status changes",
	}, []string{"status"})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of deleted orders",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of the checkout pipeline",
		Buckets: prometheus.DefBuckets,
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of successful payments",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payments",
	})

	AdminConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "admin_connections",
		Help: "Number of open admin dashboard sockets",
	})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_broadcasts_total",
		Help: "Total number of events broadcast to admin dashboards",
	})

	BroadcastDeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_broadcast_deliveries_total",
		Help: "Total number of per-connection deliveries",
	})

	BroadcastSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_broadcast_skipped_total",
		Help: "Total number of per-connection deliveries skipped",
	}, []string{"reason"})

	NotifyFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notify_failed_total",
		Help: "Total number of NEW_ORDER notifications that could not be handed off",
	})

	RelayedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_relayed_total",
		Help: "Total number of order events consumed from the broker",
	}, []string{"type"})

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
