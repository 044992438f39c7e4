package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wiki-graphql/internal/gqlrequest"
)

func TestGraphQLSpanAttributes(t *testing.T) {
	assert.Nil(t, GraphQLSpanAttributes(nil))

	analysis := gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{
		Query:             `query Q($t: [String!]) { pages(titles: $t) { id } users(names: ["A"]) { id } }`,
		DocumentSizeBytes: 72,
	})
	attrs := attribute.NewSet(GraphQLSpanAttributes(analysis)...)

	name, ok := attrs.Value("graphql.operation.name")
	assert.True(t, ok)
	assert.Equal(t, "Q", name.AsString())

	roots, ok := attrs.Value("graphql.query.root_fields")
	assert.True(t, ok)
	assert.Equal(t, []string{"pages", "users"}, roots.AsStringSlice())

	vars, _ := attrs.Value("graphql.query.variable_count")
	assert.Equal(t, int64(1), vars.AsInt64())

	_, ok = attrs.Value("graphql.operation.requested_name")
	assert.False(t, ok)
}

func TestGraphQLLogFieldsIncludesTraceID(t *testing.T) {
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
		Remote:  true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	fields := GraphQLLogFields(ctx, gqlrequest.ExecMeta{
		OperationName: "Q",
		OperationType: "query",
		OperationHash: "hash123",
		RootFields:    []string{"pages", "revisions"},
	})

	byKey := map[string]string{}
	for _, f := range fields {
		attr := f.(slog.Attr)
		byKey[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, map[string]string{
		"operation_name": "Q",
		"operation_type": "query",
		"operation_hash": "hash123",
		"root_fields":    "pages,revisions",
		"trace_id":       spanCtx.TraceID().String(),
	}, byKey)

	assert.Empty(t, GraphQLLogFields(context.Background(), gqlrequest.ExecMeta{}))
}
