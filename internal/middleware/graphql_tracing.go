package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"wiki-graphql/internal/gqlrequest"
	"wiki-graphql/internal/logging"
	"wiki-graphql/internal/observability"
	"wiki-graphql/internal/wikidb"
)

const tracerName = "wiki-graphql/graphql"

// GraphQLTracingMiddleware wraps execution in a graphql.execute span and
// reports loader cache efficiency on it when the request finishes.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || analysis.Envelope.Query == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(tracerName).Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}
			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			loaders, ok := wikidb.FromContext(ctx)
			if !ok {
				return
			}
			hits, misses := loaders.CacheStats()
			logging.FromContext(ctx).Debug("loader cache",
				slog.Int64("hits", hits),
				slog.Int64("misses", misses),
			)
			if !span.IsRecording() {
				return
			}
			span.SetAttributes(
				attribute.Int64("graphql.execution.cache_hits", hits),
				attribute.Int64("graphql.execution.cache_misses", misses),
			)
			if total := hits + misses; total > 0 {
				span.SetAttributes(attribute.Float64("graphql.execution.cache_hit_ratio", float64(hits)/float64(total)))
			}
		})
	}
}
