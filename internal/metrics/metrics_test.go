package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OperationsTotal.WithLabelValues("assess_urgency", "ok").Inc()
	m.OperationDuration.WithLabelValues("assess_urgency").Observe(0.01)
	m.PersistFailures.WithLabelValues("signal").Inc()
	m.ExternalFailures.WithLabelValues("analyzer").Inc()
	m.SignalQueueDepth.Set(4)
	m.NotificationsTotal.WithLabelValues("delivered").Inc()
	m.DispatcherInFlight.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"signaldesk_operations_total",
		"signaldesk_operation_duration_seconds",
		"signaldesk_persist_failures_total",
		"signaldesk_external_failures_total",
		"signaldesk_signal_queue_depth",
		"signaldesk_notifications_total",
		"signaldesk_dispatcher_in_flight",
	}, names)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SignalQueueDepth))
}

func TestNewTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })

	// Separate registries never collide.
	assert.NotPanics(t, func() {
		NewUnregistered()
		NewUnregistered()
	})
}
