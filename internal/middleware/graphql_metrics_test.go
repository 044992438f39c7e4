package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"wiki-graphql/internal/observability"
)

func newTestMetrics(t *testing.T) (*observability.GraphQLMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	metrics, err := observability.NewGraphQLMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

func writeJSON(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestGraphQLMetricsMiddleware_RecordsRequests(t *testing.T) {
	tests := []struct {
		name       string
		request    string
		response   string
		wantOpType string
		wantErrors bool
	}{
		{
			name:       "query",
			request:    `{"query":"{ pages(ids: [1]) { title } }"}`,
			response:   `{"data":{"pages":[{"title":"Main Page"}]}}`,
			wantOpType: "query",
		},
		{
			name:       "errors in a 200 response",
			request:    `{"query":"{ users(names: [\"Nobody\"]) { editCount } }"}`,
			response:   `{"data":{"users":[null]},"errors":[{"message":"database connection unavailable"}]}`,
			wantOpType: "query",
			wantErrors: true,
		},
		{
			name:       "null errors",
			request:    `{"query":"{ pages(ids: [1]) { title } }"}`,
			response:   `{"data":{},"errors":null}`,
			wantOpType: "query",
		},
		{
			name:       "undecodable body",
			request:    `{"query":`,
			response:   `{"data":null}`,
			wantOpType: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, reader := newTestMetrics(t)
			handler := GraphQLMetricsMiddleware(metrics)(writeJSON(tt.response))
			handler.ServeHTTP(httptest.NewRecorder(), postGraphQL(tt.request))

			rm := collect(t, reader)
			assert.Equal(t, int64(1), sumCounter(rm, "graphql.requests.total", map[string]string{
				"operation_type": tt.wantOpType,
				"has_errors":     boolString(tt.wantErrors),
			}))
			wantErrCount := int64(0)
			if tt.wantErrors {
				wantErrCount = 1
			}
			assert.Equal(t, wantErrCount, sumCounter(rm, "graphql.errors.total", nil))
		})
	}
}

func TestGraphQLMetricsMiddleware_SkipsRequestsWithoutDocument(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	handler := GraphQLMetricsMiddleware(metrics)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("Accept", "text/html")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Zero(t, sumCounter(collect(t, reader), "graphql.requests.total", nil))
}

func TestGraphQLMetricsMiddleware_StatusCodeCountsAsError(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	handler := GraphQLMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), postGraphQL(`{"query":"{ categories(names: [\"Physics\"]) { name } }"}`))

	assert.Equal(t, int64(1), sumCounter(collect(t, reader), "graphql.errors.total", map[string]string{"operation_type": "query"}))
}

func TestGraphQLRequestAnalysisMiddleware_CountsRejections(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	handler := GraphQLRequestAnalysisMiddleware(QueryLimits{MaxDepth: 1}, metrics)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), postGraphQL(`{"query":"{ pages(ids: [1]) { title } }"}`))

	assert.Equal(t, int64(1), sumCounter(collect(t, reader), "graphql.requests.rejected", map[string]string{"reason": "depth_limit"}))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// sumCounter adds up the data points of an int64 sum whose attributes
// contain every key/value in want.
func sumCounter(rm metricdata.ResourceMetrics, name string, want map[string]string) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if matchAttrs(point.Attributes, want) {
					total += point.Value
				}
			}
		}
	}
	return total
}

func matchAttrs(set attribute.Set, want map[string]string) bool {
	for key, value := range want {
		got, ok := set.Value(attribute.Key(key))
		if !ok || got.Emit() != value {
			return false
		}
	}
	return true
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
