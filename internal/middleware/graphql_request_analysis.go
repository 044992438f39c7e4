package middleware

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"wiki-graphql/internal/gqlrequest"
	"wiki-graphql/internal/logging"
	"wiki-graphql/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// QueryLimits bounds the shape of accepted operations. Zero disables a bound.
type QueryLimits struct {
	MaxDepth  int
	MaxFields int
}

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request
// once, refuses operations over the configured limits and stores the result
// in the request context for the layers below.
func GraphQLRequestAnalysisMiddleware(limits QueryLimits, metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			meta := gqlrequest.MetaFromAnalysis(analysis)
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			logger := logging.FromContext(ctx)
			if fields := observability.GraphQLLogFields(ctx, meta); len(fields) > 0 {
				logger = logger.WithFields(fields...)
				ctx = logging.WithLogger(ctx, logger)
			}

			if err := analysis.CheckLimits(limits.MaxDepth, limits.MaxFields); err != nil {
				reason := "field_limit"
				var limitErr *gqlrequest.LimitError
				if errors.As(err, &limitErr) && limitErr.Limit == "depth" {
					reason = "depth_limit"
				}
				logger.Warn("rejected GraphQL operation", "reason", reason, "error", err.Error())
				metrics.RecordRejected(ctx, reason)
				writeGraphQLError(w, http.StatusBadRequest, err.Error(), "QUERY_TOO_LARGE")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type graphQLErrorBody struct {
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message    string            `json:"message"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// writeGraphQLError answers with a GraphQL-shaped error document so clients
// can handle refusals the same way as execution errors.
func writeGraphQLError(w http.ResponseWriter, status int, message, code string) {
	body := graphQLErrorBody{Errors: []graphQLError{{Message: message}}}
	if code != "" {
		body.Errors[0].Extensions = map[string]string{"code": code}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
