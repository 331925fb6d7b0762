// Package metrics holds the Prometheus instruments for SignalDesk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for engine observability.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec   // operations by name and outcome
	OperationDuration  *prometheus.HistogramVec // latency by operation
	PersistFailures    *prometheus.CounterVec   // failed writes by entity; non-zero means data loss
	ExternalFailures   *prometheus.CounterVec   // collaborator failures by dependency
	SignalQueueDepth   prometheus.Gauge         // pending signals after the last prioritization
	NotificationsTotal *prometheus.CounterVec   // dispatcher deliveries by status
	DispatcherInFlight prometheus.Gauge         // notifications being delivered right now
}

// New creates and registers the metrics. The registerer allows tests to use a
// private registry instead of the global one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_operations_total",
			Help: "Total number of engine operations by name and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signaldesk_operation_duration_seconds",
			Help:    "Engine operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_persist_failures_total",
			Help: "Writes that failed and were dropped while the computed result was still returned",
		}, []string{"entity"}),
		ExternalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_external_failures_total",
			Help: "Failed or timed-out calls to external collaborators",
		}, []string{"dependency"}),
		SignalQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_signal_queue_depth",
			Help: "Number of pending signals in the queue",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signaldesk_notifications_total",
			Help: "Provider notification delivery attempts by status",
		}, []string{"status"}),
		DispatcherInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_dispatcher_in_flight",
			Help: "Provider notifications currently being delivered",
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.PersistFailures,
		m.ExternalFailures,
		m.SignalQueueDepth,
		m.NotificationsTotal,
		m.DispatcherInFlight,
	)
	return m
}

// NewUnregistered creates metrics backed by a throwaway registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
