package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Ledger
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Completed ledger postings",
		},
		[]string{"kind"}, // deposit|withdrawal|escrow_hold|...
	)
	TransactionsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_failed_total",
			Help: "Rejected or rolled back ledger operations",
		},
		[]string{"operation", "reason"},
	)

	// Lifecycles
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Entity status changes",
		},
		[]string{"entity", "to"}, // request|offer|dispute|withdrawal
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications that could not be queued or delivered",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TransactionsTotal,
		TransactionsFailed,
		StateTransitions,
		WorkerQueueDepth,
		NotificationsDropped,
	)
}
