package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/dbpool"
	"wiki-graphql/internal/observability"
	"wiki-graphql/internal/resolver"
	"wiki-graphql/internal/wikidb"
)

// Init initializes all runtime resources. It is idempotent. On failure every
// resource acquired so far is released again.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("connecting to replica",
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database_effective", a.effectiveDatabase),
		slog.String("database_source", a.databaseSource),
		slog.Bool("dsn_present", a.dsnPresent),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := waitForDatabase(ctx, a.cfg, a.logger, db); err != nil {
		if dbStatsReg != nil {
			_ = dbStatsReg.Unregister()
		}
		_ = db.Close()
		return fmt.Errorf("failed to verify database connection: %w", err)
	}

	pool := dbpool.New(db, dbpool.Config{
		MaxOpen:     a.cfg.Database.Pool.MaxOpen,
		IdleTimeout: a.cfg.Database.Pool.IdleTimeout,
		RetryDelay:  a.cfg.Database.Pool.RetryDelay,
	}, a.logger.With(slog.String("component", "dbpool")))
	cleanup.push("database pool", func(shutdownCtx context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return pool.Shutdown(shutdownCtx)
	})
	a.logger.Info("connected to replica",
		slog.String("database_effective", a.effectiveDatabase),
		slog.Int("pool_max_open", pool.Stats().MaxOpen),
		slog.Duration("pool_idle_timeout", a.cfg.Database.Pool.IdleTimeout),
	)

	if meterProvider != nil {
		reg, err := observability.RegisterPoolMetrics(otel.Meter("wiki-graphql"), pool)
		if err != nil {
			return fmt.Errorf("failed to register pool metrics: %w", err)
		}
		cleanup.push("pool metrics", func(context.Context) error {
			return reg.Unregister()
		})
	}

	executor := dbexec.NewExecutor(pool, a.logger.With(slog.String("component", "dbexec")))
	res := resolver.NewResolver(executor, resolver.Config{
		Loader: wikidb.Config{
			Wait:     a.cfg.Loader.Wait,
			MaxBatch: a.cfg.Loader.MaxBatch,
		},
		DefaultLimit: a.cfg.Server.GraphQLDefaultLimit,
		MaxLimit:     a.cfg.Server.GraphQLMaxLimit,
		Observer:     observerFor(graphqlMetrics),
		Logger:       a.logger.With(slog.String("component", "resolver")),
	})
	schema, err := res.BuildGraphQLSchema()
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	graphqlHandler := buildGraphQLHandler(a.cfg, a.logger, &schema, res, graphqlMetrics)
	mux := buildRouter(a.cfg, a.logger, pool, graphqlHandler, meterProvider != nil)
	handler := wrapHTTPHandler(a.cfg, a.logger, graphqlMetrics, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.tracerProvider = tracerProvider
	a.db = db
	a.pool = pool
	a.executor = executor
	a.resolver = res
	a.schema = schema
	a.graphqlHandler = graphqlHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}

// observerFor keeps a nil *GraphQLMetrics from turning into a non-nil
// interface value.
func observerFor(metrics *observability.GraphQLMetrics) resolver.Observer {
	if metrics == nil {
		return nil
	}
	return metrics
}
