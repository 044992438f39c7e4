package middleware

import (
	"bytes"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"wiki-graphql/internal/gqlrequest"
	"wiki-graphql/internal/observability"
)

// GraphQLMetricsMiddleware records request counts, durations and operation
// shape. Requests that carry no GraphQL document, such as the GraphiQL page,
// are passed through unmeasured.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			if analysis.Envelope.Query == "" && analysis.DecodeError == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			operationType := analysis.OperationType
			if operationType == "" {
				operationType = "unknown"
			}
			if analysis.Operation != nil {
				metrics.RecordQueryShape(ctx, analysis.SelectionDepth, analysis.FieldCount, operationType)
			}

			start := time.Now()
			wrapped := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			hasErrors := wrapped.status >= http.StatusBadRequest || responseHasGraphQLErrors(wrapped.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

// bodyRecorder keeps a copy of the response so the errors array can be
// inspected after the handler returns.
type bodyRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *bodyRecorder) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// responseHasGraphQLErrors reports whether body is a GraphQL response with a
// non-empty errors array.
func responseHasGraphQLErrors(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false
	}
	var payload struct {
		Errors []jsoniter.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
