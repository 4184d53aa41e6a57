package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrFillNotFound is returned by GetFill for an unknown id.
var ErrFillNotFound = errors.New("fill not found")

// SQL journals to a database through sqlx. The same statements serve
// sqlite3 and postgres.
type SQL struct {
	db *sqlx.DB
}

func NewSQLite(path string) (*SQL, error) {
	return OpenSQL("sqlite3", path)
}

func NewPostgres(dsn string) (*SQL, error) {
	return OpenSQL("postgres", dsn)
}

// OpenSQL connects with driver and creates the schema.
func OpenSQL(driver, dsn string) (*SQL, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect %s: %w", driver, err)
	}
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: schema: %w", err)
		}
	}
	return &SQL{db: db}, nil
}

func (j *SQL) RecordFill(r FillRecord) error {
	r.Time = r.Time.UTC()
	_, err := j.db.NamedExec(insertFill, r)
	return err
}

func (j *SQL) RecordEquity(e EquitySnapshot) error {
	e.Time = e.Time.UTC()
	_, err := j.db.NamedExec(insertEquity, e)
	return err
}

// GetFill returns a single fill by id.
func (j *SQL) GetFill(ctx context.Context, fillID string) (FillRecord, error) {
	var rec FillRecord
	err := j.db.GetContext(ctx, &rec, j.db.Rebind(`SELECT * FROM fills WHERE fill_id = ?`), fillID)
	if errors.Is(err, sql.ErrNoRows) {
		return FillRecord{}, fmt.Errorf("%w: %q", ErrFillNotFound, fillID)
	}
	return rec, err
}

// FillsBetween returns fills with time in [start, end) in time order.
func (j *SQL) FillsBetween(ctx context.Context, start, end time.Time) ([]FillRecord, error) {
	var out []FillRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM fills WHERE time >= ? AND time < ? ORDER BY time, fill_id`),
		start.UTC(), end.UTC())
	return out, err
}

// EquityBetween returns equity snapshots with time in [start, end).
func (j *SQL) EquityBetween(ctx context.Context, start, end time.Time) ([]EquitySnapshot, error) {
	var out []EquitySnapshot
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM equity WHERE time >= ? AND time < ? ORDER BY time`),
		start.UTC(), end.UTC())
	return out, err
}

func (j *SQL) Close() error {
	return j.db.Close()
}
