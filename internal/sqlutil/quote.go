// Package sqlutil holds small helpers shared by statement builders.
package sqlutil

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteIdentifiers quotes every name.
func QuoteIdentifiers(names ...string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return quoted
}

// TupleIn builds `(a, b) IN ((?,?), ...)` for composite keys. Every tuple
// must have one value per column.
func TupleIn(columns []string, tuples [][]any) (sq.Sqlizer, error) {
	width := len(columns)
	if width == 0 {
		return nil, fmt.Errorf("tuple IN requires at least one column")
	}
	if len(tuples) == 0 {
		return sq.Expr("1 = 0"), nil
	}

	args := make([]any, 0, len(tuples)*width)
	rows := make([]string, 0, len(tuples))
	placeholders := "(" + sq.Placeholders(width) + ")"
	for _, tuple := range tuples {
		if len(tuple) != width {
			return nil, fmt.Errorf("tuple width mismatch: expected %d values, got %d", width, len(tuple))
		}
		rows = append(rows, placeholders)
		args = append(args, tuple...)
	}

	quoted := QuoteIdentifiers(columns...)
	return sq.Expr(fmt.Sprintf("(%s) IN (%s)", strings.Join(quoted, ", "), strings.Join(rows, ", ")), args...), nil
}

// Chunk splits values into slices of at most max elements. A non-positive
// max yields a single chunk.
func Chunk[T any](values []T, max int) [][]T {
	if len(values) == 0 {
		return nil
	}
	if max <= 0 || len(values) <= max {
		return [][]T{values}
	}
	chunks := make([][]T, 0, (len(values)+max-1)/max)
	for start := 0; start < len(values); start += max {
		end := min(start+max, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
