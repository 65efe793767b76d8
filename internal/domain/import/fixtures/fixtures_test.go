package fixtures

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

func TestGenerator_Reproducible(t *testing.T) {
	a := NewGenerator(42).Rows(20)
	b := NewGenerator(42).Rows(20)
	assert.Equal(t, a, b)
}

func TestGenerator_RowsAreDistinct(t *testing.T) {
	rows := NewGenerator(7).Rows(500)
	seen := make(map[Row]bool, len(rows))
	for _, r := range rows {
		assert.False(t, seen[r], "duplicate row %+v", r)
		seen[r] = true
	}
}

func TestCSV_ParsesBack(t *testing.T) {
	rows := NewGenerator(1).Rows(10)
	data, err := CSV(rows)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Date,Merchant,Amount,Account\n"))

	batch, err := parser.ParseDelimited(data)
	require.NoError(t, err)
	require.Len(t, batch.Rows, len(rows))
	assert.Equal(t, rows[3].Merchant, batch.Rows[3].Values["Merchant"])
	assert.Equal(t, rows[3].Amount, batch.Rows[3].Values["Amount"])
}

func TestSpreadsheet_ParsesBack(t *testing.T) {
	rows := NewGenerator(2).Rows(5)
	data, err := Spreadsheet(rows)
	require.NoError(t, err)

	batch, err := parser.ParseSpreadsheet(data)
	require.NoError(t, err)
	require.Len(t, batch.Rows, len(rows))
	assert.Equal(t, rows[0].Date, batch.Rows[0].Values["Date"])
}
