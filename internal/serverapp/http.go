package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wiki-graphql/internal/config"
	"wiki-graphql/internal/logging"
	"wiki-graphql/internal/middleware"
	"wiki-graphql/internal/observability"
)

// buildGraphQLHandler assembles the /graphql chain:
//
//	logging -> analysis and limits -> metrics -> loaders -> tracing -> graphql
//
// Tracing sits inside the loaders layer so it can read their cache counters.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, loaders middleware.LoaderProvider, metrics *observability.GraphQLMetrics) http.Handler {
	var h http.Handler = handler.New(&handler.Config{
		Schema:   schema,
		Pretty:   true,
		GraphiQL: cfg.Server.GraphiQLEnabled,
	})
	h = middleware.GraphQLTracingMiddleware()(h)
	h = middleware.LoadersMiddleware(loaders)(h)
	if metrics != nil {
		h = middleware.GraphQLMetricsMiddleware(metrics)(h)
		logger.Info("GraphQL metrics middleware enabled")
	}
	h = middleware.GraphQLRequestAnalysisMiddleware(middleware.QueryLimits{
		MaxDepth:  cfg.Server.GraphQLMaxDepth,
		MaxFields: cfg.Server.GraphQLMaxFields,
	}, metrics)(h)
	return middleware.LoggingMiddleware(logger)(h)
}

// pinger is implemented by *dbpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db pinger, graphqlHandler http.Handler, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}
	return mux
}

// wrapHTTPHandler applies the layers shared by every route. Rate limiting is
// outermost so refused requests cost as little as possible.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, metrics *observability.GraphQLMetrics, h http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	h = middleware.CORSMiddleware(middleware.CORSConfig{
		Enabled:          cfg.Server.CORSEnabled,
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   cfg.Server.CORSAllowedMethods,
		AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
		ExposeHeaders:    cfg.Server.CORSExposeHeaders,
		AllowCredentials: cfg.Server.CORSAllowCredentials,
		MaxAge:           cfg.Server.CORSMaxAge,
	})(h)

	return middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:      cfg.Server.RateLimitEnabled,
		RPS:          cfg.Server.RateLimitRPS,
		Burst:        cfg.Server.RateLimitBurst,
		ClientRPS:    cfg.Server.ClientRateLimitRPS,
		ClientBurst:  cfg.Server.ClientRateLimitBurst,
		ClientExpiry: cfg.Server.ClientRateLimitExpiry,
		Metrics:      metrics,
	})(h)
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, h http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// healthHandler reports whether a replica session can be obtained and pinged.
func healthHandler(db pinger, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			// Generic body; the error may name hosts.
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
