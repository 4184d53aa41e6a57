package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQL, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func sampleFill(id string, ts time.Time) FillRecord {
	return FillRecord{
		FillID:          id,
		OrderID:         "ord_" + id,
		Symbol:          "SPY240119C00475000",
		Side:            "buy",
		Quantity:        10,
		Price:           5.22,
		Slippage:        0.02,
		Commission:      6.5,
		UnderlyingPrice: 474.5,
		RealizedPL:      -6.5,
		Time:            ts,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('fills','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["fills"])
	assert.True(t, found["equity"])
}

func TestSQLiteSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.RecordFill(sampleFill("a", time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC))))
	require.NoError(t, j.Close())

	again, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	_, err = again.GetFill(context.Background(), "a")
	assert.NoError(t, err)
}

func TestSQLiteRecordAndQueryFills(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	t1 := time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)
	t2 := t1.Add(15 * time.Minute)
	t3 := t1.Add(24 * time.Hour)

	for i, ts := range []time.Time{t2, t1, t3} {
		require.NoError(t, j.RecordFill(sampleFill(string(rune('a'+i)), ts)))
	}

	got, err := j.GetFill(ctx, "a")
	require.NoError(t, err)
	want := sampleFill("a", t2)
	assert.True(t, want.Time.Equal(got.Time))
	got.Time = want.Time
	assert.Equal(t, want, got)

	_, err = j.GetFill(ctx, "zzz")
	assert.ErrorIs(t, err, ErrFillNotFound)

	day, err := j.FillsBetween(ctx, t1, t1.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, "b", day[0].FillID)
	assert.Equal(t, "a", day[1].FillID)

	// Duplicate ids are rejected by the primary key.
	assert.Error(t, j.RecordFill(sampleFill("a", t1)))
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	ts := time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)
	snap := EquitySnapshot{
		Time: ts, Cash: 94800, PortfolioValue: 100100, RealizedPL: 0, UnrealizedPL: 100,
		Delta: 520, Gamma: 40, Theta: -35, Vega: 21, Rho: 3,
	}
	require.NoError(t, j.RecordEquity(snap))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: ts.Add(time.Hour), Cash: 1}))

	got, err := j.EquityBetween(context.Background(), ts, ts.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, ts.Equal(got[0].Time))
	got[0].Time = ts
	assert.Equal(t, snap, got[0])
}
