package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Semantic convention attributes.
var (
	AttrChecker   = attribute.Key("fuse.checker")
	AttrMode      = attribute.Key("fuse.prover.mode")
	AttrImageID   = attribute.Key("fuse.image.id")
	AttrRequestID = attribute.Key("fuse.request.id")

	AttrAssurance = attribute.Key("fuse.proof.assurance")
	AttrResult    = attribute.Key("fuse.result")
	AttrCompliant = attribute.Key("fuse.compliant")

	AttrErrorCode = attribute.Key("fuse.error.code")
)

// ProveOperation creates attributes for a proving request.
func ProveOperation(checker, mode, imageID, requestID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrChecker.String(checker),
		AttrMode.String(mode),
		AttrImageID.String(imageID),
		AttrRequestID.String(requestID),
	}
}

// VerifyOperation creates attributes for an envelope verification.
func VerifyOperation(assurance, result string, compliant bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAssurance.String(assurance),
		AttrResult.String(result),
		AttrCompliant.Bool(compliant),
	}
}

// ErrorCode extracts a stable code from err for metric labels.
func ErrorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "DEADLINE_EXCEEDED"
	}
	if errors.Is(err, context.Canceled) {
		return "CANCELED"
	}
	return fmt.Sprintf("%T", err)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus marks the current span as failed when err is non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
