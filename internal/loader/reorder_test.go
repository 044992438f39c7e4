package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id   int
	name string
}

func rowID(r row) int { return r.id }

func TestResort(t *testing.T) {
	rows := []row{{id: 3, name: "c"}, {id: 1, name: "a"}, {id: 3, name: "dup"}}

	got := Resort([]int{1, 2, 3}, rows, rowID)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].name)
	assert.Nil(t, got[1])
	assert.Equal(t, "c", got[2].name, "first row for a key wins")
}

func TestResortEmpty(t *testing.T) {
	got := Resort([]int{4, 5}, nil, rowID)
	assert.Equal(t, []*row{nil, nil}, got)
}

func TestResortMany(t *testing.T) {
	rows := []row{{id: 1, name: "x"}, {id: 2, name: "y"}, {id: 1, name: "z"}}

	got := ResortMany([]int{2, 9, 1}, rows, rowID)
	require.Len(t, got, 3)
	assert.Equal(t, []row{{id: 2, name: "y"}}, got[0])
	assert.NotNil(t, got[1])
	assert.Empty(t, got[1])
	assert.Equal(t, []row{{id: 1, name: "x"}, {id: 1, name: "z"}}, got[2])
}
