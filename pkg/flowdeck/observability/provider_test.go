package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobals(t *testing.T) {
	originalTracer := otel.GetTracerProvider()
	originalMeter := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(originalTracer)
		otel.SetMeterProvider(originalMeter)
		tracer = otel.Tracer("flowdeck")
	})
}

func TestSetupProviders_Disabled(t *testing.T) {
	restoreGlobals(t)

	p := SetupProviders(ProviderConfig{})
	assert.Nil(t, p.Meter)
	assert.Nil(t, p.Tracer)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupProviders_Tracing(t *testing.T) {
	restoreGlobals(t)
	exporter := tracetest.NewInMemoryExporter()

	p := SetupProviders(ProviderConfig{
		Tracing:       true,
		SpanProcessor: sdktrace.NewSimpleSpanProcessor(exporter),
	})
	require.NotNil(t, p.Tracer)
	assert.Nil(t, p.Meter)
	assert.Same(t, p.Tracer, otel.GetTracerProvider())

	tracer = otel.Tracer("flowdeck")
	_, span := NewSpanManager().StartDispatchSpan(context.Background(), "flow-1", "user-1")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "flowdeck.dispatch", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "flowdeck", service)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupProviders_Metrics(t *testing.T) {
	restoreGlobals(t)

	p := SetupProviders(ProviderConfig{ServiceName: "flowdeck-test", Metrics: true})
	require.NotNil(t, p.Meter)
	assert.Nil(t, p.Tracer)
	assert.Same(t, p.Meter, otel.GetMeterProvider())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestStdoutExport(t *testing.T) {
	restoreGlobals(t)
	var out bytes.Buffer

	cfg, err := StdoutExport(ProviderConfig{Metrics: true, Tracing: true}, &out, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, cfg.MetricReader)
	require.NotNil(t, cfg.SpanProcessor)

	p := SetupProviders(cfg)
	tracer = otel.Tracer("flowdeck")
	_, span := NewSpanManager().StartDispatchSpan(context.Background(), "flow-1", "user-1")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "flowdeck.dispatch")
}

func TestStdoutExport_Disabled(t *testing.T) {
	cfg, err := StdoutExport(ProviderConfig{}, &bytes.Buffer{}, 0)
	require.NoError(t, err)
	assert.Nil(t, cfg.MetricReader)
	assert.Nil(t, cfg.SpanProcessor)
}
