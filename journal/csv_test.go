package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fillsPath := filepath.Join(dir, "fills.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(fillsPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	fills := readCSV(t, fillsPath)
	require.Len(t, fills, 1)
	assert.Equal(t, []string{"fill_id", "order_id", "symbol", "side", "quantity", "price", "slippage",
		"commission", "underlying_price", "realized_pl", "time"}, fills[0])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 1)
	assert.Equal(t, []string{"time", "cash", "portfolio_value", "realized_pl", "unrealized_pl",
		"delta", "gamma", "theta", "vega", "rho"}, equity[0])
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fillsPath := filepath.Join(dir, "fills.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(fillsPath, equityPath)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)
	require.NoError(t, j.RecordFill(sampleFill("f1", ts)))
	require.NoError(t, j.RecordFill(sampleFill("f2", ts.Add(time.Minute))))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: ts, Cash: 94800, PortfolioValue: 100000}))
	require.NoError(t, j.Close())

	fills := readCSV(t, fillsPath)
	require.Len(t, fills, 3)
	assert.Equal(t, "f1", fills[1][0])
	assert.Equal(t, "SPY240119C00475000", fills[1][2])
	assert.Equal(t, "10", fills[1][4])
	assert.Equal(t, "5.22", fills[1][5])
	assert.Equal(t, "2024-01-16T09:30:00Z", fills[1][10])
	assert.Equal(t, "f2", fills[2][0])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 2)
	assert.Equal(t, "94800", equity[1][1])
}

func TestCSVJournalAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fillsPath := filepath.Join(dir, "fills.csv")
	equityPath := filepath.Join(dir, "equity.csv")
	ts := time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)

	for _, id := range []string{"f1", "f2"} {
		j, err := NewCSV(fillsPath, equityPath)
		require.NoError(t, err)
		require.NoError(t, j.RecordFill(sampleFill(id, ts)))
		require.NoError(t, j.Close())
	}

	fills := readCSV(t, fillsPath)
	require.Len(t, fills, 3)
	assert.Equal(t, "fill_id", fills[0][0])
	assert.Equal(t, "f1", fills[1][0])
	assert.Equal(t, "f2", fills[2][0])
	assert.Len(t, readCSV(t, equityPath), 1)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"none", Options{}, false},
		{"explicit none", Options{Type: TypeNone}, false},
		{"csv", Options{Type: TypeCSV, FillsPath: filepath.Join(dir, "f.csv"), EquityPath: filepath.Join(dir, "e.csv")}, false},
		{"sqlite", Options{Type: "SQLite", DBPath: filepath.Join(dir, "j.db")}, false},
		{"csv missing paths", Options{Type: TypeCSV}, true},
		{"sqlite missing path", Options{Type: TypeSQLite}, true},
		{"postgres missing dsn", Options{Type: TypePostgres}, true},
		{"unknown", Options{Type: "kafka"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := Open(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, j.RecordFill(sampleFill("x", time.Now())))
			assert.NoError(t, j.Close())
		})
	}
}
