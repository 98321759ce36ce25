package logging

import "context"

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// TraceIDKey is the context key WithContext reads the trace id from.
func TraceIDKey() interface{} { return traceIDKey }

// SpanIDKey is the context key WithContext reads the span id from.
func SpanIDKey() interface{} { return spanIDKey }

func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	fields := make(map[string]interface{}, 2)
	if v := ctx.Value(traceIDKey); v != nil {
		fields["trace_id"] = v
	}
	if v := ctx.Value(spanIDKey); v != nil {
		fields["span_id"] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
