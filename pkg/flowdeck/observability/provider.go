package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
)

// ProviderConfig selects which global OTel providers to install.
type ProviderConfig struct {
	ServiceName string
	Metrics     bool
	Tracing     bool

	// MetricReader receives collected metrics. Nil installs a manual reader.
	MetricReader sdkmetric.Reader

	// SpanProcessor receives finished spans. Nil keeps spans in-process only.
	SpanProcessor sdktrace.SpanProcessor
}

// Providers holds the installed SDK providers.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// SetupProviders installs SDK meter and tracer providers as the OTel globals.
// Disabled signals keep the global no-op providers.
func SetupProviders(cfg ProviderConfig) *Providers {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "flowdeck"
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	p := &Providers{}
	if cfg.Metrics {
		reader := cfg.MetricReader
		if reader == nil {
			reader = sdkmetric.NewManualReader()
		}
		p.Meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		otel.SetMeterProvider(p.Meter)
	}
	if cfg.Tracing {
		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
		if cfg.SpanProcessor != nil {
			opts = append(opts, sdktrace.WithSpanProcessor(cfg.SpanProcessor))
		}
		p.Tracer = sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(p.Tracer)
	}
	return p
}

// Shutdown flushes and stops the installed providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// StdoutExport points cfg's metric reader and span processor at JSON
// exporters writing to w. Metrics are pushed every interval and on Shutdown.
func StdoutExport(cfg ProviderConfig, w io.Writer, interval time.Duration) (ProviderConfig, error) {
	if cfg.Metrics {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return cfg, fmt.Errorf("metric exporter: %w", err)
		}
		var opts []sdkmetric.PeriodicReaderOption
		if interval > 0 {
			opts = append(opts, sdkmetric.WithInterval(interval))
		}
		cfg.MetricReader = sdkmetric.NewPeriodicReader(exp, opts...)
	}
	if cfg.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return cfg, fmt.Errorf("trace exporter: %w", err)
		}
		cfg.SpanProcessor = sdktrace.NewBatchSpanProcessor(exp)
	}
	return cfg, nil
}
