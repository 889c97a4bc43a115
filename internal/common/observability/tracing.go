package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"canary-speech-client/internal/common/logger"
)

// StartSpan starts a child span of whatever span ctx carries. A nil
// Observability hands out non-recording spans.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil {
		return ctx, noop.Span{}
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// LogExporter is a SpanExporter that writes each span as a debug log entry.
type LogExporter struct {
	logger logger.Logger
}

func NewLogExporter(log logger.Logger) *LogExporter {
	return &LogExporter{logger: log.With(map[string]interface{}{"component": "tracing"})}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := map[string]interface{}{
			"span":       s.Name(),
			"traceId":    s.SpanContext().TraceID().String(),
			"spanId":     s.SpanContext().SpanID().String(),
			"durationMs": s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status":     s.Status().Code.String(),
		}
		if s.Parent().IsValid() {
			fields["parentSpanId"] = s.Parent().SpanID().String()
		}
		for _, kv := range s.Attributes() {
			fields[string(kv.Key)] = kv.Value.AsInterface()
		}
		e.logger.Debug("span ended", fields)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
