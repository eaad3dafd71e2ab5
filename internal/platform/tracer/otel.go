package tracer

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "attesto/pkg/domain-errors"
)

const instrumentationName = "attesto"

// AttrErrorCode carries the domain error code of a failed span.
const AttrErrorCode = "error.code"

// OTelTracer emits spans through an OpenTelemetry tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer replaces the tracer taken from the global provider.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) { o.tracer = t }
}

func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(instrumentationName)
	}
	return t
}

// Start opens a span. Identity directory calls are client spans; everything
// else is internal.
func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(spanKind(name)),
		trace.WithAttributes(otelAttributes(attrs)...),
	)
	return ctx, otelSpan{span: span}
}

func spanKind(name string) trace.SpanKind {
	if strings.HasPrefix(name, "identity.") {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

type otelSpan struct {
	span trace.Span
}

// End records err on the span. Errors the caller caused, such as a missing
// claim or a lost decision race, keep the span status unset; only faults on
// our side mark it as failed.
func (s otelSpan) End(err error) {
	if err != nil {
		code, ok := dErrors.CodeOf(err)
		if ok {
			s.span.SetAttributes(attribute.String(AttrErrorCode, string(code)))
		}
		if !ok || code.ServerFault() {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
	}
	s.span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(otelAttributes(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(otelAttributes(attrs)...))
}

// otelAttributes skips values of types OpenTelemetry cannot carry.
func otelAttributes(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case []string:
			out = append(out, attribute.StringSlice(a.Key, v))
		}
	}
	return out
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = otelSpan{}
)
