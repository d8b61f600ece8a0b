package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value whose attributes include every kv in want.
func sumFor(t *testing.T, m *metricdata.Metrics, want ...attribute.KeyValue) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			v, ok := dp.Attributes.Value(kv.Key)
			if !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordDispatch(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordDispatch(ctx, "prompt-single", 20*time.Millisecond, nil)
	m.RecordDispatch(ctx, "prompt-single", 30*time.Millisecond, nil)
	m.RecordDispatch(ctx, "telephone", 5*time.Millisecond, errors.New("busy"))

	rm := collectMetrics(t, reader)
	count := findMetric(rm, "flowdeck.dispatch.count")
	assert.Equal(t, int64(2), sumFor(t, count,
		attribute.String("rule", "prompt-single"), attribute.String("outcome", OutcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, count,
		attribute.String("rule", "telephone"), attribute.String("outcome", OutcomeError)))

	latency := findMetric(rm, "flowdeck.dispatch.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, hist.DataPoints)
}

func TestRecordRateLimitRejectionAndStoreOp(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordRateLimitRejection(ctx, "chat")
	m.RecordStoreOp(ctx, "save", nil)
	m.RecordStoreOp(ctx, "load", errors.New("missing"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "flowdeck.ratelimit.rejections"),
		attribute.String("kind", "chat")))
	ops := findMetric(rm, "flowdeck.store.ops")
	assert.Equal(t, int64(1), sumFor(t, ops, attribute.String("op", "save"), attribute.String("outcome", OutcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, ops, attribute.String("op", "load"), attribute.String("outcome", OutcomeError)))
}
