// Package execution turns orders into fills against a quote under a fill
// model and a liquidity policy.
package execution

import (
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/optsim/market"
)

// FillModel picks the base price an order executes at.
type FillModel string

const (
	// Midpoint fills both sides at (bid+ask)/2.
	Midpoint FillModel = "midpoint"
	// Aggressive buys at the ask and sells at the bid.
	Aggressive FillModel = "aggressive"
	// Passive buys at the bid and sells at the ask.
	Passive FillModel = "passive"
)

func ParseFillModel(s string) (FillModel, error) {
	switch m := FillModel(strings.ToLower(strings.TrimSpace(s))); m {
	case Midpoint, Aggressive, Passive:
		return m, nil
	case "":
		return Midpoint, nil
	}
	return "", market.Errorf(market.KindInvalidInput, "unknown fill model %q (use midpoint, aggressive or passive)", s)
}

// Order is a request to trade Quantity contracts of Symbol.
type Order struct {
	ID       string
	Symbol   string
	Side     market.Side
	Quantity int
	// Limit is nil for market orders.
	Limit *float64
	Time  time.Time
}

// LimitPrice is a helper for building limit orders.
func LimitPrice(p float64) *float64 { return &p }

func (o Order) Validate() error {
	switch {
	case o.Side != market.Buy && o.Side != market.Sell:
		return market.Errorf(market.KindInvalidOrder, "invalid side %q", o.Side).WithContract(o.Symbol)
	case o.Quantity <= 0:
		return market.Errorf(market.KindInvalidOrder, "quantity must be positive, got %d", o.Quantity).WithContract(o.Symbol)
	case o.Limit != nil && (*o.Limit < 0 || math.IsNaN(*o.Limit) || math.IsInf(*o.Limit, 0)):
		return market.Errorf(market.KindInvalidOrder, "limit price %v must be non-negative", *o.Limit).WithContract(o.Symbol)
	}
	return nil
}

// Fill is the immutable outcome of an executed order.
type Fill struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      market.Side
	Requested int
	Quantity  int
	// Price is what the ledger books; BasePrice + Slippage for buys,
	// BasePrice - Slippage for sells, after bounds.
	Price           float64
	BasePrice       float64
	Slippage        float64
	Commission      float64
	UnderlyingPrice float64
	Time            time.Time
}

// Notional is price × quantity × multiplier.
func (f Fill) Notional() float64 {
	return f.Price * float64(f.Quantity) * market.Multiplier
}

// SignedQuantity is positive for buys and negative for sells.
func (f Fill) SignedQuantity() int { return f.Side.Sign() * f.Quantity }
