package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wiki-graphql/internal/gqlrequest"
)

// GraphQLSpanAttributes builds span attributes from request analysis.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis) []attribute.KeyValue {
	if analysis == nil {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, 10)
	attrs = appendIfSet(attrs, "graphql.operation.requested_name", analysis.RequestedOperationName)
	attrs = appendIfSet(attrs, "graphql.operation.name", analysis.OperationName)
	attrs = appendIfSet(attrs, "graphql.operation.type", analysis.OperationType)
	attrs = appendIfSet(attrs, "graphql.operation.hash", analysis.OperationHash)
	if analysis.Envelope.DocumentSizeBytes > 0 {
		attrs = append(attrs, attribute.Int("graphql.document.size_bytes", analysis.Envelope.DocumentSizeBytes))
	}
	if analysis.Operation != nil {
		attrs = append(attrs,
			attribute.StringSlice("graphql.query.root_fields", analysis.RootFields),
			attribute.Int("graphql.query.field_count", analysis.FieldCount),
			attribute.Int("graphql.query.depth", analysis.SelectionDepth),
			attribute.Int("graphql.query.variable_count", analysis.VariableCount),
		)
	}
	return attrs
}

func appendIfSet(attrs []attribute.KeyValue, key, value string) []attribute.KeyValue {
	if value == "" {
		return attrs
	}
	return append(attrs, attribute.String(key, value))
}

// GraphQLLogFields builds structured log fields from execution metadata and
// the active span.
func GraphQLLogFields(ctx context.Context, meta gqlrequest.ExecMeta) []any {
	fields := make([]any, 0, 5)
	if meta.OperationName != "" {
		fields = append(fields, slog.String("operation_name", meta.OperationName))
	}
	if meta.OperationType != "" {
		fields = append(fields, slog.String("operation_type", meta.OperationType))
	}
	if meta.OperationHash != "" {
		fields = append(fields, slog.String("operation_hash", meta.OperationHash))
	}
	if len(meta.RootFields) > 0 {
		fields = append(fields, slog.String("root_fields", strings.Join(meta.RootFields, ",")))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
