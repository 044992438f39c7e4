// Package dbexec runs parameterized read statements on pooled sessions and
// returns rows as plain maps.
package dbexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"wiki-graphql/internal/dbpool"
)

// Row is a single result row keyed by column name.
type Row = map[string]any

// QueryExecutor abstracts statement execution so loaders can run against a
// pool or a stub.
type QueryExecutor interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	TimedQuery(ctx context.Context, query string, args ...any) ([]Row, time.Duration, error)
}

// ConnSource hands out exclusive sessions. *dbpool.Pool implements it.
type ConnSource interface {
	Acquire(ctx context.Context) (*dbpool.Conn, error)
	Release(conn *dbpool.Conn)
}

// QueryError is a failed statement. Code is the MySQL error number, or 0 when
// the failure did not come from the server.
type QueryError struct {
	Code    int
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("query failed: %s", e.Message)
	}
	return fmt.Sprintf("query failed (%d): %s", e.Code, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Executor executes statements through a ConnSource.
type Executor struct {
	conns  ConnSource
	logger *slog.Logger
}

// NewExecutor creates an executor over conns.
func NewExecutor(conns ConnSource, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{conns: conns, logger: logger}
}

// Query runs a statement and returns every row. The session is released on
// all paths. Acquisition failures are returned as *dbpool.ConnectionError,
// statement failures as *QueryError.
func (e *Executor) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	conn, err := e.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.conns.Release(conn)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		if isBrokenConn(err) {
			conn.MarkBroken()
		}
		qerr := newQueryError(err)
		e.logger.Debug("query failed",
			slog.Int("code", qerr.Code),
			slog.String("error", qerr.Message),
		)
		return nil, qerr
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		if isBrokenConn(err) {
			conn.MarkBroken()
		}
		return nil, newQueryError(err)
	}
	return result, nil
}

// TimedQuery is Query plus the wall-clock time the call took.
func (e *Executor) TimedQuery(ctx context.Context, query string, args ...any) ([]Row, time.Duration, error) {
	start := time.Now()
	rows, err := e.Query(ctx, query, args...)
	return rows, time.Since(start), err
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	results := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(types))
		for i, col := range types {
			row[col.Name()] = convertValue(values[i], col.DatabaseTypeName())
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// convertValue turns binary column values into text, except BIT(1) which
// becomes a bool.
func convertValue(val any, dbType string) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}
	if dbType == "BIT" && len(b) == 1 && b[0] <= 1 {
		return b[0] == 1
	}
	return string(b)
}

func newQueryError(err error) *QueryError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return &QueryError{Code: int(mysqlErr.Number), Message: mysqlErr.Message, Err: err}
	}
	return &QueryError{Message: err.Error(), Err: err}
}

func isBrokenConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
}
