package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chatrelay"

// StartTurnSpan starts a span covering one chat turn.
func StartTurnSpan(ctx context.Context, turnID, conversationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("conversation.id", conversationID),
		),
	)
}

// StartGenerationSpan starts a span for a call to the generation service.
func StartGenerationSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("generation.url", url)),
	)
}

// StartFeedbackSpan starts a span for recording feedback on a turn.
func StartFeedbackSpan(ctx context.Context, turnID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "feedback",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("feedback.kind", kind),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
