package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "signaldesk", "test", true)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracerRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "engine.assess_urgency")
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "engine.assess_urgency", rec.Ended()[0].Name())
}
