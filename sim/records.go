package sim

import (
	"errors"
	"sort"
	"time"

	"github.com/fatih/structs"

	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/journal"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/portfolio"
)

// Status is the headline view of a session.
type Status struct {
	State           State                  `json:"state" structs:"state"`
	Symbol          string                 `json:"symbol" structs:"symbol"`
	Time            time.Time              `json:"time" structs:"time"`
	UnderlyingPrice float64                `json:"underlying_price" structs:"underlying_price"`
	FillModel       execution.FillModel    `json:"fill_model" structs:"fill_model"`
	Account         Account                `json:"account" structs:"account"`
	Positions       int                    `json:"positions" structs:"positions"`
	Trades          int                    `json:"trades" structs:"trades"`
	Settlements     []portfolio.Settlement `json:"settlements,omitempty" structs:"settlements,omitempty"`
}

// Account is the ledger's money plus the aggregate portfolio Greeks.
type Account struct {
	portfolio.Account `structs:",flatten"`
	Greeks            market.Greeks `json:"greeks" structs:"greeks"`
}

// Chain is the option chain at the clock.
type Chain struct {
	Underlying      string      `json:"underlying" structs:"underlying"`
	Time            time.Time   `json:"time" structs:"time"`
	UnderlyingPrice float64     `json:"underlying_price" structs:"underlying_price"`
	Expiries        []time.Time `json:"expiries" structs:"expiries"`
	Rows            []ChainRow  `json:"rows" structs:"rows"`
}

// ChainRow is one contract. Mark and Greeks fall back to the model when
// the data source did not supply them.
type ChainRow struct {
	Symbol       string            `json:"symbol" structs:"symbol"`
	Type         market.OptionType `json:"type" structs:"type"`
	Strike       float64           `json:"strike" structs:"strike"`
	Expiry       time.Time         `json:"expiry" structs:"expiry"`
	Bid          float64           `json:"bid" structs:"bid"`
	Ask          float64           `json:"ask" structs:"ask"`
	Last         float64           `json:"last" structs:"last"`
	Mark         float64           `json:"mark" structs:"mark"`
	Theoretical  float64           `json:"theoretical" structs:"theoretical"`
	Volume       int64             `json:"volume" structs:"volume"`
	OpenInterest int64             `json:"open_interest" structs:"open_interest"`
	IV           float64           `json:"iv" structs:"iv"`
	Greeks       market.Greeks     `json:"greeks" structs:"greeks"`
}

// sortRows orders a chain by expiry, strike, then calls before puts.
func sortRows(rows []ChainRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Expiry.Equal(b.Expiry) {
			return a.Expiry.Before(b.Expiry)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type == market.Call && b.Type == market.Put
	})
}

// Trade is one entry of the immutable order history: the order as
// submitted and the fill it produced.
type Trade struct {
	OrderID         string              `json:"order_id" structs:"order_id"`
	FillID          string              `json:"fill_id" structs:"fill_id"`
	Symbol          string              `json:"symbol" structs:"symbol"`
	Side            market.Side         `json:"side" structs:"side"`
	FillModel       execution.FillModel `json:"fill_model" structs:"fill_model"`
	Requested       int                 `json:"requested" structs:"requested"`
	Quantity        int                 `json:"quantity" structs:"quantity"`
	Limit           *float64            `json:"limit,omitempty" structs:"limit,omitempty"`
	Price           float64             `json:"price" structs:"price"`
	BasePrice       float64             `json:"base_price" structs:"base_price"`
	Slippage        float64             `json:"slippage" structs:"slippage"`
	Commission      float64             `json:"commission" structs:"commission"`
	UnderlyingPrice float64             `json:"underlying_price" structs:"underlying_price"`
	RealizedPL      float64             `json:"realized_pl" structs:"realized_pl"`
	Time            time.Time           `json:"time" structs:"time"`
}

func newTrade(o execution.Order, f execution.Fill, model execution.FillModel, realized float64) Trade {
	t := Trade{
		OrderID:         o.ID,
		FillID:          f.ID,
		Symbol:          f.Symbol,
		Side:            f.Side,
		FillModel:       model,
		Requested:       f.Requested,
		Quantity:        f.Quantity,
		Price:           f.Price,
		BasePrice:       f.BasePrice,
		Slippage:        f.Slippage,
		Commission:      f.Commission,
		UnderlyingPrice: f.UnderlyingPrice,
		RealizedPL:      realized,
		Time:            f.Time,
	}
	if o.Limit != nil {
		t.Limit = execution.LimitPrice(*o.Limit)
	}
	return t
}

func (t Trade) journalRecord() journal.FillRecord {
	return journal.FillRecord{
		FillID:          t.FillID,
		OrderID:         t.OrderID,
		Symbol:          t.Symbol,
		Side:            string(t.Side),
		Quantity:        t.Quantity,
		Price:           t.Price,
		Slippage:        t.Slippage,
		Commission:      t.Commission,
		UnderlyingPrice: t.UnderlyingPrice,
		RealizedPL:      t.RealizedPL,
		Time:            t.Time,
	}
}

// Record methods render views as plain field maps with money rounded to
// cents and everything else to six places.

func (s Status) Record() map[string]any  { return tidy(structs.Map(s)) }
func (a Account) Record() map[string]any { return tidy(structs.Map(a)) }
func (c Chain) Record() map[string]any   { return tidy(structs.Map(c)) }
func (t Trade) Record() map[string]any   { return tidy(structs.Map(t)) }

func PositionRecord(p portfolio.Position) map[string]any     { return tidy(structs.Map(p)) }
func SettlementRecord(s portfolio.Settlement) map[string]any { return tidy(structs.Map(s)) }

// Records maps a slice of views through fn.
func Records[T any](items []T, fn func(T) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}

// ErrorRecord renders a failure with its kind and context fields.
func ErrorRecord(err error) map[string]any {
	rec := map[string]any{"error": err.Error()}
	var e *market.Error
	if !errors.As(err, &e) {
		return rec
	}
	rec["kind"] = string(e.Kind)
	if e.Contract != "" {
		rec["contract"] = e.Contract
	}
	if !e.Time.IsZero() {
		rec["timestamp"] = e.Time
	}
	if e.Requested != 0 || e.Available != 0 {
		rec["requested"] = e.Requested
		rec["available"] = e.Available
	}
	return rec
}

var moneyFields = map[string]bool{
	"cash":            true,
	"initial_cash":    true,
	"realized_pl":     true,
	"unrealized_pl":   true,
	"market_value":    true,
	"portfolio_value": true,
	"commissions":     true,
	"commission":      true,
}

func tidy(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = tidyValue(k, v)
	}
	return m
}

func tidyValue(key string, v any) any {
	switch x := v.(type) {
	case float64:
		if moneyFields[key] {
			return market.Cents(x)
		}
		return market.Round(x, 6)
	case *float64:
		if x == nil {
			return nil
		}
		return market.Round(*x, 6)
	case map[string]any:
		return tidy(x)
	case []any:
		for i := range x {
			x[i] = tidyValue(key, x[i])
		}
		return x
	}
	return v
}
