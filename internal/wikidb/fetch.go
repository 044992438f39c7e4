package wikidb

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/mitchellh/mapstructure"

	"wiki-graphql/internal/dbexec"
	"wiki-graphql/internal/loader"
	"wiki-graphql/internal/sqlutil"
)

// MaxKeysPerStatement caps the IN list of a single statement. Larger batches
// are split and the results merged.
const MaxKeysPerStatement = 1000

// table describes a batched lookup against one table.
type table struct {
	name    string
	columns []string
	key     string
	// extra is ANDed to the key condition.
	extra sq.Sqlizer
	// join is a LEFT JOIN clause appended after FROM.
	join string
}

func (t table) selectWhere(cond sq.Sqlizer) (string, []any, error) {
	builder := sq.Select(sqlutil.QuoteIdentifiers(t.columns...)...).
		From(sqlutil.QuoteIdentifier(t.name))
	if t.join != "" {
		builder = builder.LeftJoin(t.join)
	}
	if t.extra != nil {
		builder = builder.Where(t.extra)
	}
	return builder.Where(cond).PlaceholderFormat(sq.Question).ToSql()
}

// decodeRows maps executor rows onto typed records through their
// mapstructure tags.
func decodeRows[V any](rows []dbexec.Row) ([]V, error) {
	out := make([]V, 0, len(rows))
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return out, nil
}

// queryRows runs one statement and decodes the result.
func queryRows[V any](ctx context.Context, exec dbexec.QueryExecutor, logger *slog.Logger, query string, args []any) ([]V, error) {
	rows, elapsed, err := exec.TimedQuery(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	logger.Debug("database query",
		slog.String("sql", query),
		slog.Int("args", len(args)),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", elapsed),
	)
	return decodeRows[V](rows)
}

// selectByKeys fetches every row of t whose key column is in keys, chunking
// the IN list.
func selectByKeys[K comparable, V any](ctx context.Context, d *deps, t table, keys []K) ([]V, error) {
	var all []V
	for _, chunk := range sqlutil.Chunk(keys, MaxKeysPerStatement) {
		query, args, err := t.selectWhere(sq.Eq{sqlutil.QuoteIdentifier(t.key): chunk})
		if err != nil {
			return nil, fmt.Errorf("build %s lookup: %w", t.name, err)
		}
		rows, err := queryRows[V](ctx, d.exec, d.logger, query, args)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// oneToOne builds a fetch that returns a pointer per key, nil when absent.
func oneToOne[K comparable, V any](d *deps, t table, keyOf func(V) K) loader.FetchFunc[K, *V] {
	return func(ctx context.Context, keys []K) ([]*V, []error) {
		rows, err := selectByKeys[K, V](ctx, d, t, keys)
		if err != nil {
			return nil, []error{err}
		}
		return loader.Resort(keys, rows, keyOf), nil
	}
}

// oneToMany builds a fetch that groups rows per key, empty when absent.
func oneToMany[K comparable, V any](d *deps, t table, keyOf func(V) K) loader.FetchFunc[K, []V] {
	return func(ctx context.Context, keys []K) ([][]V, []error) {
		rows, err := selectByKeys[K, V](ctx, d, t, keys)
		if err != nil {
			return nil, []error{err}
		}
		return loader.ResortMany(keys, rows, keyOf), nil
	}
}

// project maps one-to-one results through fn, keeping nils.
func project[K comparable, V, W any](fetch loader.FetchFunc[K, *V], fn func(V) W) loader.FetchFunc[K, *W] {
	return func(ctx context.Context, keys []K) ([]*W, []error) {
		values, errs := fetch(ctx, keys)
		if values == nil {
			return nil, errs
		}
		out := make([]*W, len(values))
		for i, v := range values {
			if v != nil {
				w := fn(*v)
				out[i] = &w
			}
		}
		return out, errs
	}
}
