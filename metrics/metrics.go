package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicing_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoicing_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RecurringInvoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_recurring_invoices_created_total",
		Help: "Invoices generated from recurring templates.",
	})

	RecurringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_recurring_failures_total",
		Help: "Recurring templates that failed to generate.",
	})

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicing_emails_total",
			Help: "Invoice emails by outcome.",
		},
		[]string{"outcome"},
	)

	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicing_payments_recorded_total",
			Help: "Completed payments by source.",
		},
		[]string{"source"},
	)

	InvoicesMarkedOverdue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_invoices_marked_overdue_total",
		Help: "Invoices flipped to overdue by the sweep.",
	})
)
