// Package portfolio books fills into positions and keeps cash, P&L and
// aggregate Greeks for one simulated account.
package portfolio

import (
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/market"
)

// Position is the net holding in one contract.
type Position struct {
	Symbol   string          `json:"symbol" structs:"symbol"`
	Contract market.Contract `json:"-" structs:"-"`
	// Quantity is signed: positive long, negative short.
	Quantity   int     `json:"quantity" structs:"quantity"`
	AvgPrice   float64 `json:"avg_price" structs:"avg_price"`
	RealizedPL float64 `json:"realized_pl" structs:"realized_pl"`

	MarkPrice    float64       `json:"mark_price" structs:"mark_price"`
	IV           float64       `json:"iv" structs:"iv"`
	Greeks       market.Greeks `json:"greeks" structs:"greeks"`
	UnrealizedPL float64       `json:"unrealized_pl" structs:"unrealized_pl"`
	OpenedAt     time.Time     `json:"opened_at" structs:"opened_at"`
	MarkedAt     time.Time     `json:"marked_at" structs:"marked_at"`
}

func (p Position) MarketValue() float64 {
	return p.MarkPrice * float64(p.Quantity) * market.Multiplier
}

// CostBasis is the signed entry value of the position.
func (p Position) CostBasis() float64 {
	return p.AvgPrice * float64(p.Quantity) * market.Multiplier
}

// Account is the derived view of the ledger's money.
type Account struct {
	Cash           float64 `json:"cash" structs:"cash"`
	InitialCash    float64 `json:"initial_cash" structs:"initial_cash"`
	RealizedPL     float64 `json:"realized_pl" structs:"realized_pl"`
	UnrealizedPL   float64 `json:"unrealized_pl" structs:"unrealized_pl"`
	MarketValue    float64 `json:"market_value" structs:"market_value"`
	PortfolioValue float64 `json:"portfolio_value" structs:"portfolio_value"`
	TotalReturnPct float64 `json:"total_return_pct" structs:"total_return_pct"`
	Commissions    float64 `json:"commissions" structs:"commissions"`
}

// Settlement records a position closed out at expiry.
type Settlement struct {
	Symbol          string    `json:"symbol" structs:"symbol"`
	Quantity        int       `json:"quantity" structs:"quantity"`
	AvgPrice        float64   `json:"avg_price" structs:"avg_price"`
	Intrinsic       float64   `json:"intrinsic" structs:"intrinsic"`
	UnderlyingPrice float64   `json:"underlying_price" structs:"underlying_price"`
	RealizedPL      float64   `json:"realized_pl" structs:"realized_pl"`
	Time            time.Time `json:"time" structs:"time"`
}

// State is the serialisable content of a Ledger.
type State struct {
	InitialCash float64    `json:"initial_cash" structs:"initial_cash"`
	Cash        float64    `json:"cash" structs:"cash"`
	RealizedPL  float64    `json:"realized_pl" structs:"realized_pl"`
	Commissions float64    `json:"commissions" structs:"commissions"`
	Positions   []Position `json:"positions" structs:"positions"`
}

// Ledger is not safe for concurrent use; the orchestrator serialises
// access.
//
// Realized P&L is net of commissions, so at all times
//
//	cash + Σ avg×qty×100 == initial + realized
type Ledger struct {
	initial     float64
	cash        float64
	realized    float64
	commissions float64
	positions   map[string]*Position
	marker      Marker
}

func New(initialCash float64, marker Marker) (*Ledger, error) {
	if !(initialCash > 0) || math.IsInf(initialCash, 0) {
		return nil, market.Errorf(market.KindInvalidInput, "initial cash must be positive, got %v", initialCash)
	}
	return &Ledger{
		initial:   initialCash,
		cash:      initialCash,
		positions: map[string]*Position{},
		marker:    marker,
	}, nil
}

// Restore rebuilds a ledger from a saved state.
func Restore(s State, marker Marker) (*Ledger, error) {
	l, err := New(s.InitialCash, marker)
	if err != nil {
		return nil, err
	}
	l.cash = s.Cash
	l.realized = s.RealizedPL
	l.commissions = s.Commissions
	for _, p := range s.Positions {
		c, err := market.ParseSymbol(p.Symbol)
		if err != nil {
			return nil, err
		}
		pos := p
		pos.Contract = c
		l.positions[p.Symbol] = &pos
	}
	return l, nil
}

func (l *Ledger) State() State {
	return State{
		InitialCash: l.initial,
		Cash:        l.cash,
		RealizedPL:  l.realized,
		Commissions: l.commissions,
		Positions:   l.Positions(),
	}
}

func (l *Ledger) Cash() float64 { return l.cash }

// ApplyFill books f against the position in c. It returns the P&L
// realized by this fill, commission included.
func (l *Ledger) ApplyFill(f execution.Fill, c market.Contract) (float64, error) {
	if f.Quantity <= 0 {
		return 0, market.Errorf(market.KindInvalidOrder, "fill quantity must be positive").WithContract(f.Symbol)
	}
	if f.Price < 0 {
		return 0, market.Errorf(market.KindInvalidOrder, "fill price must be non-negative").WithContract(f.Symbol)
	}

	notional := f.Notional()
	if f.Side == market.Buy {
		if cost := notional + f.Commission; cost > l.cash {
			return 0, market.Errorf(market.KindInsufficientFunds,
				"buy costs %.2f, cash is %.2f", cost, l.cash).
				WithContract(f.Symbol).WithTime(f.Time).WithQuantities(cost, l.cash)
		}
	}

	symbol := c.Symbol()
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol, Contract: c, OpenedAt: f.Time, MarkPrice: f.Price}
		l.positions[symbol] = pos
	}

	signed := f.SignedQuantity()
	realized := -f.Commission

	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, signed):
		total := pos.Quantity + signed
		pos.AvgPrice = (pos.AvgPrice*math.Abs(float64(pos.Quantity)) + f.Price*float64(f.Quantity)) /
			math.Abs(float64(total))
		pos.Quantity = total

	default:
		closed := min(abs(pos.Quantity), f.Quantity)
		dir := float64(sign(pos.Quantity))
		realized += (f.Price - pos.AvgPrice) * float64(closed) * dir * market.Multiplier

		pos.Quantity += signed
		if pos.Quantity != 0 && !sameSign(pos.Quantity, int(dir)) {
			// Flipped through zero: the remainder opened at the fill price.
			pos.AvgPrice = f.Price
			pos.OpenedAt = f.Time
		}
	}

	l.cash -= float64(f.Side.Sign())*notional + f.Commission
	l.commissions += f.Commission
	l.realized += realized
	pos.RealizedPL += realized

	if pos.Quantity == 0 {
		delete(l.positions, symbol)
		return realized, nil
	}
	pos.UnrealizedPL = (pos.MarkPrice - pos.AvgPrice) * float64(pos.Quantity) * market.Multiplier
	return realized, nil
}

// Remark revalues every open position against snap.
func (l *Ledger) Remark(now time.Time, snap market.Snapshot) {
	for _, pos := range l.positions {
		if q, ok := snap.Quote(pos.Symbol); ok {
			v := l.marker.Quote(q, now)
			if _, ok := q.MarkPrice(); ok || v.Theoretical {
				pos.MarkPrice = v.Price
			}
			pos.IV, pos.Greeks = v.IV, v.Greeks
		} else if snap.UnderlyingPrice > 0 {
			v, err := l.marker.Theoretical(pos.Contract, snap.UnderlyingPrice, pos.IV, now)
			if err == nil {
				pos.MarkPrice, pos.IV, pos.Greeks = v.Price, v.IV, v.Greeks
			}
		}
		pos.MarkedAt = now
		pos.UnrealizedPL = (pos.MarkPrice - pos.AvgPrice) * float64(pos.Quantity) * market.Multiplier
	}
}

// Settle cash-settles positions whose expiry session has closed by now at
// intrinsic value against spot.
func (l *Ledger) Settle(now time.Time, spot float64) []Settlement {
	var out []Settlement
	for _, sym := range l.symbols() {
		pos := l.positions[sym]
		if now.Before(market.SessionClose(pos.Contract.Expiry)) {
			continue
		}
		intrinsic := pos.Contract.Intrinsic(spot)
		qty := float64(pos.Quantity)
		realized := (intrinsic - pos.AvgPrice) * qty * market.Multiplier

		l.cash += intrinsic * qty * market.Multiplier
		l.realized += realized
		delete(l.positions, sym)

		out = append(out, Settlement{
			Symbol:          sym,
			Quantity:        pos.Quantity,
			AvgPrice:        pos.AvgPrice,
			Intrinsic:       intrinsic,
			UnderlyingPrice: spot,
			RealizedPL:      realized,
			Time:            now,
		})
	}
	return out
}

// Greeks aggregates qty × multiplier × per-contract Greeks over open
// positions. It is recomputed on every call.
func (l *Ledger) Greeks() market.Greeks {
	var g market.Greeks
	for _, p := range l.positions {
		w := float64(p.Quantity) * market.Multiplier
		g.Delta += w * p.Greeks.Delta
		g.Gamma += w * p.Greeks.Gamma
		g.Theta += w * p.Greeks.Theta
		g.Vega += w * p.Greeks.Vega
		g.Rho += w * p.Greeks.Rho
	}
	return g
}

func (l *Ledger) Account() Account {
	a := Account{
		Cash:        l.cash,
		InitialCash: l.initial,
		RealizedPL:  l.realized,
		Commissions: l.commissions,
	}
	for _, p := range l.positions {
		a.MarketValue += p.MarketValue()
		a.UnrealizedPL += p.UnrealizedPL
	}
	a.PortfolioValue = a.Cash + a.MarketValue
	a.TotalReturnPct = (a.PortfolioValue - a.InitialCash) / a.InitialCash * 100
	return a
}

// Position returns a copy of the open position in symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of the open positions ordered by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, sym := range l.symbols() {
		out = append(out, *l.positions[sym])
	}
	return out
}

func (l *Ledger) symbols() []string {
	syms := make([]string, 0, len(l.positions))
	for s := range l.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

func sameSign(a, b int) bool { return (a > 0) == (b > 0) }

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
