package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/dbpool"
)

const meterName = "wiki-graphql"

// GraphQLMetrics records request, loader and elision metrics. A nil
// *GraphQLMetrics is a valid no-op recorder.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram
	queryFields     metric.Int64Histogram
	rejected        metric.Int64Counter

	loads         metric.Int64Counter
	batchSize     metric.Int64Histogram
	batchDuration metric.Float64Histogram
	batchErrors   metric.Int64Counter
	elidedKeys    metric.Int64Counter
}

// NewGraphQLMetrics creates the instruments on meter.
func NewGraphQLMetrics(meter metric.Meter) (*GraphQLMetrics, error) {
	m := &GraphQLMetrics{}
	var errs []error
	int64Counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	int64Histogram := func(name, desc string) metric.Int64Histogram {
		h, err := meter.Int64Histogram(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return h
	}
	msHistogram := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		errs = append(errs, err)
		return h
	}

	m.requestDuration = msHistogram("graphql.request.duration", "Duration of GraphQL requests in milliseconds")
	m.requestCounter = int64Counter("graphql.requests.total", "Total number of GraphQL requests")
	m.errorCounter = int64Counter("graphql.errors.total", "Total number of GraphQL requests that returned errors")
	active, err := meter.Int64UpDownCounter("graphql.requests.active", metric.WithDescription("Number of in-flight GraphQL requests"))
	errs = append(errs, err)
	m.activeRequests = active
	m.queryDepth = int64Histogram("graphql.query.depth", "Selection depth of GraphQL operations")
	m.queryFields = int64Histogram("graphql.query.field_count", "Field selections per GraphQL operation")
	m.rejected = int64Counter("graphql.requests.rejected", "Requests refused before execution")

	m.loads = int64Counter("wiki.loader.loads", "Keys requested from a loader, by cache outcome")
	m.batchSize = int64Histogram("wiki.loader.batch_size", "Distinct keys per dispatched batch")
	m.batchDuration = msHistogram("wiki.loader.batch.duration", "Time spent fetching a batch in milliseconds")
	m.batchErrors = int64Counter("wiki.loader.batch.errors", "Batches that failed as a whole")
	m.elidedKeys = int64Counter("wiki.loader.elided_keys", "Keys answered without a lookup")

	if err := multierror.Append(nil, errs...).ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("failed to create GraphQL metrics: %w", err)
	}
	return m, nil
}

// InitMetrics creates the metrics on the global meter provider.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := NewGraphQLMetrics(otel.Meter(meterName))
	if err != nil {
		return nil, err
	}
	logger.Info("GraphQL metrics initialized")
	return metrics, nil
}

// RecordRequest records a finished request.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
	}
}

// RecordQueryShape records depth and field count of an operation.
func (m *GraphQLMetrics) RecordQueryShape(ctx context.Context, depth, fields int, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation_type", operationType))
	m.queryDepth.Record(ctx, int64(depth), attrs)
	m.queryFields.Record(ctx, int64(fields), attrs)
}

// RecordRejected counts a request refused before execution.
func (m *GraphQLMetrics) RecordRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// IncrementActiveRequests marks a request as started.
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests marks a request as finished.
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// ObserveLoad counts a single key lookup on a loader.
func (m *GraphQLMetrics) ObserveLoad(ctx context.Context, loader string, hit bool) {
	if m == nil {
		return
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("loader", loader),
		attribute.Bool("hit", hit),
	))
}

// ObserveBatch records a dispatched batch.
func (m *GraphQLMetrics) ObserveBatch(ctx context.Context, loader string, size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("loader", loader))
	m.batchSize.Record(ctx, int64(size), attrs)
	m.batchDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if err != nil {
		m.batchErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("loader", loader),
			attribute.String("kind", errorKind(err)),
		))
	}
}

// ObserveElided counts keys that were synthesized instead of loaded.
func (m *GraphQLMetrics) ObserveElided(ctx context.Context, loader string, keys int) {
	if m == nil || keys <= 0 {
		return
	}
	m.elidedKeys.Add(ctx, int64(keys), metric.WithAttributes(attribute.String("loader", loader)))
}

// errorKind buckets batch failures for the errors counter.
func errorKind(err error) string {
	var connErr *dbpool.ConnectionError
	var queryErr *dbexec.QueryError
	switch {
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &queryErr):
		return "query"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// PoolStatser is implemented by *dbpool.Pool.
type PoolStatser interface {
	Stats() dbpool.Stats
}

// RegisterPoolMetrics exports pool occupancy as observable gauges and
// counters. Unregister the returned registration on shutdown.
func RegisterPoolMetrics(meter metric.Meter, pool PoolStatser) (metric.Registration, error) {
	live, err1 := meter.Int64ObservableGauge("wiki.db.pool.connections", metric.WithDescription("Open replica sessions by state"))
	maxOpen, err2 := meter.Int64ObservableGauge("wiki.db.pool.max_open", metric.WithDescription("Configured session bound"))
	evicted, err3 := meter.Int64ObservableCounter("wiki.db.pool.evicted", metric.WithDescription("Sessions closed after going idle"))
	retries, err4 := meter.Int64ObservableCounter("wiki.db.pool.retries", metric.WithDescription("Acquisitions that needed the retry"))
	if err := multierror.Append(nil, err1, err2, err3, err4).ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("failed to create pool metrics: %w", err)
	}

	idleAttrs := metric.WithAttributes(attribute.String("state", "idle"))
	inUseAttrs := metric.WithAttributes(attribute.String("state", "in_use"))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := pool.Stats()
		o.ObserveInt64(live, int64(stats.Idle), idleAttrs)
		o.ObserveInt64(live, int64(stats.InUse), inUseAttrs)
		o.ObserveInt64(maxOpen, int64(stats.MaxOpen))
		o.ObserveInt64(evicted, stats.Evicted)
		o.ObserveInt64(retries, stats.Retries)
		return nil
	}, live, maxOpen, evicted, retries)
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
