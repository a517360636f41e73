// Package metrics provides Prometheus metrics for meshinv.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal tracks network number allocations by outcome
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshinv",
			Subsystem: "allocator",
			Name:      "allocations_total",
			Help:      "Total number of network number allocation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RecordsReconciledTotal tracks reconciled snapshot records
	RecordsReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshinv",
			Subsystem: "reconcile",
			Name:      "records_total",
			Help:      "Total number of snapshot records reconciled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// PassesTotal tracks reconciliation passes by source
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshinv",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Total number of reconciliation passes by source and status",
		},
		[]string{"source", "status"},
	)

	// PassDuration tracks reconciliation pass duration
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "meshinv",
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	// NotificationsTotal tracks notification deliveries by sink
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshinv",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notification deliveries by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshinv",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{"method", "status_code"},
	)

	// SSEClients tracks connected event stream clients
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "meshinv",
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Number of connected server-sent event clients",
		},
	)
)

// Outcome labels shared across counters
const (
	OutcomeCreated   = "created"
	OutcomeExisting  = "existing"
	OutcomeSticky    = "sticky"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
	OutcomeDelivered = "delivered"
)
