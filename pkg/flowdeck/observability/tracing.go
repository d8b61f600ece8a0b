package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("flowdeck")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts the span covering one flow run.
	StartDispatchSpan(ctx context.Context, flowID, userID string) (context.Context, trace.Span)

	// StartCollaboratorSpan starts a child span for a call to an external service.
	StartCollaboratorSpan(ctx context.Context, name string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses the global OTel tracer provider.
func NewSpanManager() SpanManager {
	return otelSpanManager{}
}

func (otelSpanManager) StartDispatchSpan(ctx context.Context, flowID, userID string) (context.Context, trace.Span) {
	return StartDispatchSpan(ctx, flowID, userID)
}

func (otelSpanManager) StartCollaboratorSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return StartCollaboratorSpan(ctx, name)
}

func (otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartDispatchSpan starts the span covering one flow run.
func StartDispatchSpan(ctx context.Context, flowID, userID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowdeck.dispatch",
		trace.WithAttributes(
			attribute.String("flow.id", flowID),
			attribute.String("user.id", userID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartCollaboratorSpan starts a client span for a call to an external service.
func StartCollaboratorSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowdeck.collaborator."+name,
		trace.WithAttributes(
			attribute.String("collaborator", name),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
