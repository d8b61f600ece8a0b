package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dispatch outcomes used as the "outcome" attribute.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// MetricsRecorder records flowdeck metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one flow run with the rule that handled it.
	RecordDispatch(ctx context.Context, rule string, duration time.Duration, err error)

	// RecordRateLimitRejection records a rejected quota check.
	RecordRateLimitRejection(ctx context.Context, kind string)

	// RecordStoreOp records a persistence operation.
	RecordStoreOp(ctx context.Context, op string, err error)
}

type otelMetrics struct {
	dispatchCount   metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	rejections      metric.Int64Counter
	storeOps        metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowdeck")

	dispatchCount, err := meter.Int64Counter("flowdeck.dispatch.count",
		metric.WithDescription("Number of flow runs by rule and outcome"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("flowdeck.dispatch.latency_ms",
		metric.WithDescription("Flow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter("flowdeck.ratelimit.rejections",
		metric.WithDescription("Number of rejected rate-limit checks"),
	)
	if err != nil {
		return nil, err
	}

	storeOps, err := meter.Int64Counter("flowdeck.store.ops",
		metric.WithDescription("Number of store operations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatchCount:   dispatchCount,
		dispatchLatency: dispatchLatency,
		rejections:      rejections,
		storeOps:        storeOps,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; set it first with
// otel.SetMeterProvider.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, rule string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("rule", rule),
		attribute.String("outcome", outcome(err)),
	)
	m.dispatchCount.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordRateLimitRejection(ctx context.Context, kind string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *otelMetrics) RecordStoreOp(ctx context.Context, op string, err error) {
	m.storeOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}
