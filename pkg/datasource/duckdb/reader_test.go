package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReader_Table(t *testing.T) {
	r, err := NewReader("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, r.table)

	r, err = NewReader("quotes.db", "fx_quotes")
	require.NoError(t, err)
	assert.Equal(t, "fx_quotes", r.table)

	for _, table := range []string{"quotes; DROP TABLE x", "1quotes", "a-b", "q.t"} {
		_, err := NewReader("", table)
		assert.Error(t, err, table)
	}
}
