package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"page", "`page`"},
		{"page_title", "`page_title`"},
		{"user", "`user`"},
		{"first name", "`first name`"},
		{"user`data", "`user``data`"},
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestTupleIn(t *testing.T) {
	cond, err := TupleIn([]string{"page_namespace", "page_title"}, [][]any{{0, "Main_Page"}, {14, "Physics"}})
	require.NoError(t, err)

	sql, args, err := cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(`page_namespace`, `page_title`) IN ((?,?), (?,?))", sql)
	assert.Equal(t, []any{0, "Main_Page", 14, "Physics"}, args)
}

func TestTupleInErrors(t *testing.T) {
	_, err := TupleIn(nil, [][]any{{1}})
	assert.Error(t, err)

	_, err = TupleIn([]string{"a", "b"}, [][]any{{1}})
	assert.ErrorContains(t, err, "tuple width mismatch")

	cond, err := TupleIn([]string{"a"}, nil)
	require.NoError(t, err)
	sql, _, err := cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk([]int{}, 3))
	assert.Equal(t, [][]int{{1, 2}}, Chunk([]int{1, 2}, 0))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, Chunk([]int{1, 2, 3, 4, 5, 6, 7}, 3))
}
