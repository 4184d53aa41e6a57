// Package journal persists the simulator's fills and equity curve.
package journal

import (
	"fmt"
	"strings"
	"time"
)

// FillRecord is one executed fill as written to the journal.
type FillRecord struct {
	FillID          string    `db:"fill_id" csv:"fill_id" json:"fill_id"`
	OrderID         string    `db:"order_id" csv:"order_id" json:"order_id"`
	Symbol          string    `db:"symbol" csv:"symbol" json:"symbol"`
	Side            string    `db:"side" csv:"side" json:"side"`
	Quantity        int       `db:"quantity" csv:"quantity" json:"quantity"`
	Price           float64   `db:"price" csv:"price" json:"price"`
	Slippage        float64   `db:"slippage" csv:"slippage" json:"slippage"`
	Commission      float64   `db:"commission" csv:"commission" json:"commission"`
	UnderlyingPrice float64   `db:"underlying_price" csv:"underlying_price" json:"underlying_price"`
	RealizedPL      float64   `db:"realized_pl" csv:"realized_pl" json:"realized_pl"`
	Time            time.Time `db:"time" csv:"time" json:"time"`
}

// EquitySnapshot is the account state after a step.
type EquitySnapshot struct {
	Time           time.Time `db:"time" csv:"time" json:"time"`
	Cash           float64   `db:"cash" csv:"cash" json:"cash"`
	PortfolioValue float64   `db:"portfolio_value" csv:"portfolio_value" json:"portfolio_value"`
	RealizedPL     float64   `db:"realized_pl" csv:"realized_pl" json:"realized_pl"`
	UnrealizedPL   float64   `db:"unrealized_pl" csv:"unrealized_pl" json:"unrealized_pl"`
	Delta          float64   `db:"delta" csv:"delta" json:"delta"`
	Gamma          float64   `db:"gamma" csv:"gamma" json:"gamma"`
	Theta          float64   `db:"theta" csv:"theta" json:"theta"`
	Vega           float64   `db:"vega" csv:"vega" json:"vega"`
	Rho            float64   `db:"rho" csv:"rho" json:"rho"`
}

type Journal interface {
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Types accepted by Options.Type.
const (
	TypeNone     = "none"
	TypeCSV      = "csv"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Options selects and configures a journal backend.
type Options struct {
	Type       string `yaml:"type" json:"type"`
	FillsPath  string `yaml:"fills_path" json:"fills_path"`
	EquityPath string `yaml:"equity_path" json:"equity_path"`
	DBPath     string `yaml:"db_path" json:"db_path"`
	DSN        string `yaml:"dsn" json:"dsn"`
}

func (o Options) Validate() error {
	switch strings.ToLower(o.Type) {
	case "", TypeNone:
	case TypeCSV:
		if o.FillsPath == "" || o.EquityPath == "" {
			return fmt.Errorf("journal: csv requires fills_path and equity_path")
		}
	case TypeSQLite:
		if o.DBPath == "" {
			return fmt.Errorf("journal: sqlite requires db_path")
		}
	case TypePostgres:
		if o.DSN == "" {
			return fmt.Errorf("journal: postgres requires dsn")
		}
	default:
		return fmt.Errorf("journal: unknown type %q", o.Type)
	}
	return nil
}

// Open builds the journal o describes.
func Open(o Options) (Journal, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(o.Type) {
	case TypeCSV:
		return NewCSV(o.FillsPath, o.EquityPath)
	case TypeSQLite:
		return NewSQLite(o.DBPath)
	case TypePostgres:
		return NewPostgres(o.DSN)
	}
	return Discard, nil
}

type discard struct{}

func (discard) RecordFill(FillRecord) error       { return nil }
func (discard) RecordEquity(EquitySnapshot) error { return nil }
func (discard) Close() error                      { return nil }

// Discard drops every record.
var Discard Journal = discard{}
