package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/dbpool"
)

func newTestMetrics(t *testing.T) (*GraphQLMetrics, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewGraphQLMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		label := ""
		if v, ok := dp.Attributes.Value(key); ok {
			label = v.Emit()
		}
		out[label] += dp.Value
	}
	return out
}

func TestLoaderObserverMetrics(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	ctx := context.Background()

	m.ObserveLoad(ctx, "pages_by_id", false)
	m.ObserveLoad(ctx, "pages_by_id", true)
	m.ObserveLoad(ctx, "users_by_name", false)
	m.ObserveBatch(ctx, "pages_by_id", 3, 2*time.Millisecond, nil)
	m.ObserveBatch(ctx, "users_by_name", 1, time.Millisecond, &dbexec.QueryError{Code: 1054, Message: "bad column"})
	m.ObserveElided(ctx, "pages_by_title", 4)
	m.ObserveElided(ctx, "pages_by_title", 0)

	data := collect(t, reader)

	assert.Equal(t, map[string]int64{"pages_by_id": 2, "users_by_name": 1}, sumByAttr(t, data["wiki.loader.loads"], "loader"))
	assert.Equal(t, map[string]int64{"true": 1, "false": 2}, sumByAttr(t, data["wiki.loader.loads"], "hit"))
	assert.Equal(t, map[string]int64{"query": 1}, sumByAttr(t, data["wiki.loader.batch.errors"], "kind"))
	assert.Equal(t, map[string]int64{"pages_by_title": 4}, sumByAttr(t, data["wiki.loader.elided_keys"], "loader"))

	hist, ok := data["wiki.loader.batch_size"].(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	var total int64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, int64(4), total)
}

func TestRequestMetrics(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	ctx := context.Background()

	m.IncrementActiveRequests(ctx)
	m.RecordQueryShape(ctx, 3, 7, "query")
	m.RecordRequest(ctx, 12*time.Millisecond, true, "query")
	m.RecordRejected(ctx, "rate_limited")
	m.IncrementActiveRequests(ctx)
	m.DecrementActiveRequests(ctx)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"query": 1}, sumByAttr(t, data["graphql.errors.total"], "operation_type"))
	assert.Equal(t, map[string]int64{"rate_limited": 1}, sumByAttr(t, data["graphql.requests.rejected"], "reason"))

	active, ok := data["graphql.requests.active"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(1), active.DataPoints[0].Value)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *GraphQLMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.ObserveLoad(ctx, "x", true)
		m.ObserveBatch(ctx, "x", 1, time.Millisecond, errors.New("boom"))
		m.ObserveElided(ctx, "x", 1)
		m.RecordRequest(ctx, time.Millisecond, false, "query")
		m.RecordQueryShape(ctx, 1, 1, "query")
		m.RecordRejected(ctx, "depth")
		m.IncrementActiveRequests(ctx)
		m.DecrementActiveRequests(ctx)
	})
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "connection", errorKind(fmt.Errorf("wrapped: %w", &dbpool.ConnectionError{Err: errors.New("refused")})))
	assert.Equal(t, "query", errorKind(&dbexec.QueryError{Message: "x"}))
	assert.Equal(t, "canceled", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "other", errorKind(errors.New("x")))
}

type fixedStats dbpool.Stats

func (s fixedStats) Stats() dbpool.Stats { return dbpool.Stats(s) }

func TestRegisterPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	reg, err := RegisterPoolMetrics(provider.Meter("test"), fixedStats{MaxOpen: 10, Live: 3, Idle: 1, InUse: 2, Evicted: 5, Retries: 1})
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	data := collect(t, reader)

	gauge, ok := data["wiki.db.pool.connections"].(metricdata.Gauge[int64])
	require.True(t, ok)
	byState := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		v, _ := dp.Attributes.Value("state")
		byState[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"idle": 1, "in_use": 2}, byState)
	assert.Equal(t, map[string]int64{"": 5}, sumByAttr(t, data["wiki.db.pool.evicted"], "state"))
}
