package resolver

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRootQueryEmitsSpanAfterLoad(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta("FROM `page` WHERE `page_id` IN (?,?)")).
		WithArgs(1, 2).
		WillReturnRows(pageRow(sqlmock.NewRows(pageCols), 1, 0, "Physics", 77))

	result := env.do(`{ pages(ids: [1, 2]) { id } }`)
	requireData(t, result, `{"pages": [{"id": 1}, null]}`)

	span := findEndedSpanByName(recorder.Ended(), "graphql.query.pages")
	require.NotNil(t, span)
	assert.Equal(t, "success", readSpanString(span.Attributes(), "graphql.resolver.outcome"))
	assert.Equal(t, int64(2), readSpanInt(span.Attributes(), "graphql.query.ids"))
}

func TestRootQuerySpanRecordsError(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta("FROM `logging`")).
		WillReturnError(assert.AnError)

	result := env.do(`{ logActions(ids: [1]) { id } }`)
	require.NotEmpty(t, result.Errors)

	span := findEndedSpanByName(recorder.Ended(), "graphql.query.log_actions")
	require.NotNil(t, span)
	assert.Equal(t, "error", readSpanString(span.Attributes(), "graphql.resolver.outcome"))
	assert.Equal(t, codes.Error, span.Status().Code)
}

func installResolverSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	return recorder, func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	}
}

func findEndedSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func readSpanString(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

func readSpanInt(attrs []attribute.KeyValue, key string) int64 {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsInt64()
		}
	}
	return 0
}
