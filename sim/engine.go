// Package sim is the replay orchestrator. An Engine owns the simulation
// clock and routes orders from the host through execution into the
// ledger, one operation at a time.
package sim

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/rustyeddy/optsim/data"
	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/internal/id"
	"github.com/rustyeddy/optsim/journal"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/portfolio"
	"github.com/rustyeddy/optsim/pricing"
)

type State string

const (
	Uninitialized State = "UNINITIALIZED"
	Running       State = "RUNNING"
	Terminated    State = "TERMINATED"
)

// Options wires an Engine to its collaborators. Provider is required;
// everything else has a default.
type Options struct {
	Provider data.Provider
	Pricing  pricing.Engine
	Policy   execution.Policy

	RiskFreeRate      float64
	DividendYield     float64
	DefaultVolatility float64

	Journal journal.Journal
	Logger  *log.Logger
}

type Engine struct {
	mu sync.Mutex

	provider data.Provider
	exec     *execution.Executor
	marker   portfolio.Marker
	journal  journal.Journal
	log      *log.Logger

	state   State
	symbol  string
	model   execution.FillModel
	clock   time.Time
	snap    market.Snapshot
	ledger  *portfolio.Ledger
	history []Trade
	settled []portfolio.Settlement
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, market.Errorf(market.KindInvalidInput, "data provider is required")
	}
	if opts.Policy == (execution.Policy{}) {
		opts.Policy = execution.DefaultPolicy()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		provider: opts.Provider,
		exec:     execution.NewExecutor(opts.Policy),
		marker:   portfolio.NewMarker(opts.Pricing, opts.RiskFreeRate, opts.DividendYield, opts.DefaultVolatility),
		journal:  opts.Journal,
		log:      opts.Logger,
		state:    Uninitialized,
	}, nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) requireRunning(op string) error {
	if e.state != Running {
		return market.Errorf(market.KindInvalidState, "%s requires a running session (state %s)", op, e.state)
	}
	return nil
}

// Start opens a session on symbol at the first data timestamp on or after
// date.
func (e *Engine) Start(ctx context.Context, symbol string, date time.Time, initialCash float64, model execution.FillModel) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		return Status{}, market.Errorf(market.KindInvalidState, "session already running on %s, reset first", e.symbol)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	model, err := execution.ParseFillModel(string(model))
	if err != nil {
		return Status{}, err
	}

	day := market.DateOf(date)
	first, ok, err := e.provider.NextTimestamp(ctx, symbol, day, 0)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, market.Errorf(market.KindNoDataForSymbol,
			"no %s data on or after %s", symbol, day.Format(market.DateLayout)).WithTime(day)
	}
	snap, err := e.provider.Quotes(ctx, symbol, first)
	if err != nil {
		return Status{}, err
	}
	ledger, err := portfolio.New(initialCash, e.marker)
	if err != nil {
		return Status{}, err
	}

	e.state = Running
	e.symbol = symbol
	e.model = model
	e.clock = first
	e.snap = snap
	e.ledger = ledger
	e.history = nil
	e.settled = nil
	e.ledger.Remark(e.clock, e.snap)

	e.log.Printf("session started: %s at %s cash=%.2f model=%s", symbol, first.Format(time.RFC3339), initialCash, model)
	return e.statusLocked(nil), nil
}

// OrderRequest is what the host submits; the engine assigns id and time.
type OrderRequest struct {
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Quantity int      `json:"quantity"`
	Limit    *float64 `json:"limit,omitempty"`
}

// SubmitOrder executes req against the quote at the current clock.
func (e *Engine) SubmitOrder(ctx context.Context, req OrderRequest) (Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("submit order"); err != nil {
		return Trade{}, err
	}
	contract, err := market.ParseSymbol(req.Symbol)
	if err != nil {
		return Trade{}, err
	}
	symbol := contract.Symbol()
	if contract.Underlying != e.symbol {
		return Trade{}, market.Errorf(market.KindUnknownContract, "%s is not on the session underlying %s", symbol, e.symbol).
			WithContract(symbol).WithTime(e.clock)
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		return Trade{}, err
	}

	snap, err := e.provider.Quotes(ctx, contract.Underlying, e.clock)
	if err != nil {
		if market.KindOf(err) == market.KindNoDataForSymbol {
			return Trade{}, market.Errorf(market.KindUnknownContract, "no quote for %s", symbol).
				WithContract(symbol).WithTime(e.clock)
		}
		return Trade{}, err
	}
	q, ok := snap.Quote(symbol)
	if !ok {
		return Trade{}, market.Errorf(market.KindUnknownContract, "no quote for %s", symbol).
			WithContract(symbol).WithTime(e.clock)
	}

	order := execution.Order{
		ID:       id.New(id.OrderPrefix, e.clock),
		Symbol:   symbol,
		Side:     side,
		Quantity: req.Quantity,
		Limit:    req.Limit,
		Time:     e.clock,
	}
	fill, err := e.exec.Execute(q, order, e.model)
	if err != nil {
		e.log.Printf("order rejected: %s %d %s: %v", side, req.Quantity, symbol, err)
		return Trade{}, err
	}
	realized, err := e.ledger.ApplyFill(fill, contract)
	if err != nil {
		e.log.Printf("fill rejected: %s %d %s: %v", side, fill.Quantity, symbol, err)
		return Trade{}, err
	}

	trade := newTrade(order, fill, e.model, realized)
	e.history = append(e.history, trade)
	e.snap = snap
	e.ledger.Remark(e.clock, e.snap)

	e.log.Printf("fill %s: %s %d %s @ %.4f (slippage %.4f)", fill.ID, side, fill.Quantity, symbol, fill.Price, fill.Slippage)
	if err := e.journal.RecordFill(trade.journalRecord()); err != nil {
		e.log.Printf("journal fill %s: %v", fill.ID, err)
	}
	return trade, nil
}

// Step advances the clock by minutes of trading time and remarks the book.
// On failure the clock and the book are left as they were.
func (e *Engine) Step(ctx context.Context, minutes int) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("step"); err != nil {
		return Status{}, err
	}
	if minutes < 0 {
		return Status{}, market.Errorf(market.KindInvalidInput, "minutes must be non-negative, got %d", minutes)
	}

	next, ok, err := e.provider.NextTimestamp(ctx, e.symbol, e.clock, minutes)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, market.Errorf(market.KindEndOfData,
			"no %s data %d minutes after the clock", e.symbol, minutes).WithTime(e.clock)
	}
	snap, err := e.provider.Quotes(ctx, e.symbol, next)
	if err != nil {
		return Status{}, err
	}

	var settled []portfolio.Settlement
	if next.After(e.clock) && snap.UnderlyingPrice > 0 {
		settled = e.ledger.Settle(next, snap.UnderlyingPrice)
		for _, s := range settled {
			e.log.Printf("expired %s: qty=%d intrinsic=%.4f realized=%.2f", s.Symbol, s.Quantity, s.Intrinsic, s.RealizedPL)
		}
		e.settled = append(e.settled, settled...)
	}

	e.clock = next
	e.snap = snap
	e.ledger.Remark(e.clock, e.snap)

	if err := e.journal.RecordEquity(e.equityLocked()); err != nil {
		e.log.Printf("journal equity at %s: %v", e.clock.Format(time.RFC3339), err)
	}
	return e.statusLocked(settled), nil
}

func (e *Engine) Status() (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("status"); err != nil {
		return Status{}, err
	}
	return e.statusLocked(nil), nil
}

func (e *Engine) statusLocked(settled []portfolio.Settlement) Status {
	return Status{
		State:           e.state,
		Symbol:          e.symbol,
		Time:            e.clock,
		UnderlyingPrice: e.snap.UnderlyingPrice,
		FillModel:       e.model,
		Account:         e.accountLocked(),
		Positions:       len(e.ledger.Positions()),
		Trades:          len(e.history),
		Settlements:     settled,
	}
}

// Chain lists the current option chain with filled-in IV and Greeks. A
// zero expiry lists every expiry.
func (e *Engine) Chain(expiry time.Time) (Chain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("chain"); err != nil {
		return Chain{}, err
	}

	quotes := e.snap.Quotes
	if !expiry.IsZero() {
		quotes = e.snap.ForExpiry(expiry)
	}
	ch := Chain{
		Underlying:      e.symbol,
		Time:            e.clock,
		UnderlyingPrice: e.snap.UnderlyingPrice,
		Expiries:        e.snap.Expiries(),
		Rows:            make([]ChainRow, 0, len(quotes)),
	}
	for _, q := range quotes {
		ch.Rows = append(ch.Rows, e.chainRow(q))
	}
	sortRows(ch.Rows)
	return ch, nil
}

func (e *Engine) chainRow(q market.Quote) ChainRow {
	v := e.marker.Quote(q, e.clock)
	row := ChainRow{
		Symbol:       q.Symbol,
		Type:         q.Type,
		Strike:       q.Strike,
		Expiry:       market.DateOf(q.Expiry),
		Bid:          q.Bid,
		Ask:          q.Ask,
		Last:         q.Last,
		Mark:         v.Price,
		Volume:       q.Volume,
		OpenInterest: q.OpenInterest,
		IV:           v.IV,
		Greeks:       v.Greeks,
	}
	if theo, err := e.marker.Theoretical(q.Contract(), e.snap.UnderlyingPrice, v.IV, e.clock); err == nil {
		row.Theoretical = theo.Price
	}
	return row
}

func (e *Engine) Positions() ([]portfolio.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("positions"); err != nil {
		return nil, err
	}
	return e.ledger.Positions(), nil
}

func (e *Engine) Account() (Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("account"); err != nil {
		return Account{}, err
	}
	return e.accountLocked(), nil
}

func (e *Engine) accountLocked() Account {
	return Account{Account: e.ledger.Account(), Greeks: e.ledger.Greeks()}
}

// History returns a copy of every fill since start, oldest first.
func (e *Engine) History() ([]Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("history"); err != nil {
		return nil, err
	}
	return copyTrades(e.history)
}

// Settlements lists every expiry settlement since start.
func (e *Engine) Settlements() []portfolio.Settlement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]portfolio.Settlement(nil), e.settled...)
}

func copyTrades(src []Trade) ([]Trade, error) {
	out := make([]Trade, 0, len(src))
	if len(src) == 0 {
		return out, nil
	}
	if err := copier.Copy(&out, &src); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset ends the session. The engine can be started again afterwards.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		e.log.Printf("session reset: %s at %s", e.symbol, e.clock.Format(time.RFC3339))
	}
	e.state = Terminated
	e.symbol = ""
	e.clock = time.Time{}
	e.snap = market.Snapshot{}
	e.ledger = nil
	e.history = nil
	e.settled = nil
}

func (e *Engine) equityLocked() journal.EquitySnapshot {
	a := e.ledger.Account()
	g := e.ledger.Greeks()
	return journal.EquitySnapshot{
		Time:           e.clock,
		Cash:           a.Cash,
		PortfolioValue: a.PortfolioValue,
		RealizedPL:     a.RealizedPL,
		UnrealizedPL:   a.UnrealizedPL,
		Delta:          g.Delta,
		Gamma:          g.Gamma,
		Theta:          g.Theta,
		Vega:           g.Vega,
		Rho:            g.Rho,
	}
}
