package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	OrderCreationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_creation_latency_seconds",
		Help:    "Latency of the order creation flow",
		Buckets: prometheus.DefBuckets,
	})

	CouponTicketsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupon_tickets_issued_total",
		Help: "Total number of coupon tickets issued",
	})

	CouponIssueDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_issue_denied_total",
		Help: "Total number of denied coupon issue attempts",
	}, []string{"reason"})

	CouponGateShortCircuitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupon_gate_short_circuit_total",
		Help: "Coupon claims rejected by the Redis fast gate without touching the database",
	})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of inventory reservations created",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	ReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_expired_total",
		Help: "Total number of reservations reclaimed by the sweeper",
	})

	CartIncrementsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_increments_accepted_total",
		Help: "Total number of accepted cart quantity increments",
	})

	CartIncrementsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_increments_rejected_total",
		Help: "Total number of cart increments rejected at the quantity cap",
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
