package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("waveflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartSessionSpan starts a span for the entire session run.
	StartSessionSpan(ctx context.Context, graphName, sessionID string) (context.Context, trace.Span)

	// StartWaveSpan starts a span for one wave; child of the session span.
	StartWaveSpan(ctx context.Context, wave int) (context.Context, trace.Span)

	// StartNodeSpan starts a span for a node execution; child of the wave span.
	StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global OTel tracer
// provider; configure the provider before calling.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartSessionSpan starts a span for the entire session run.
func (m *otelSpanManager) StartSessionSpan(ctx context.Context, graphName, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "waveflow.session",
		trace.WithAttributes(
			attribute.String("graph.name", graphName),
			attribute.String("session.id", sessionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartWaveSpan starts a span for one wave.
func (m *otelSpanManager) StartWaveSpan(ctx context.Context, wave int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "waveflow.wave",
		trace.WithAttributes(
			attribute.Int("wave", wave),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartNodeSpan starts a span for a node execution.
func (m *otelSpanManager) StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "waveflow.node."+nodeID,
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
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
