package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	got, err := FormatTimestamp("20230415093012")
	require.NoError(t, err)
	assert.Equal(t, "2023-04-15T09:30:12Z", got)

	_, err = FormatTimestamp("2023-04-15")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := map[string]string{
		"2023-04-15T09:30:12Z":      "20230415093012",
		"2023-04-15T09:30:12.345Z":  "20230415093012",
		"2023-04-15T11:30:12+02:00": "20230415093012",
		"2023-04-15":                "20230415000000",
		"20230415093012":            "20230415093012",
	}
	for input, want := range tests {
		got, err := ParseTimestamp(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestCategoryCounts(t *testing.T) {
	c := Category{Pages: 10, Subcats: 3, Files: 2}
	assert.Equal(t, CategoryCounts{Total: 15, Pages: 10, Subcats: 3, Files: 2}, c.Counts())
}
