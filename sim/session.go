package sim

import (
	"context"
	"time"

	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/portfolio"
)

// SessionVersion is bumped when SessionState changes incompatibly.
const SessionVersion = 1

// SessionState is everything needed to resume a session in another
// process. Quotes are not part of it; they are fetched again at Clock.
type SessionState struct {
	Version     int                    `json:"version"`
	Symbol      string                 `json:"symbol"`
	FillModel   execution.FillModel    `json:"fill_model"`
	Clock       time.Time              `json:"clock"`
	Ledger      portfolio.State        `json:"ledger"`
	History     []Trade                `json:"history"`
	Settlements []portfolio.Settlement `json:"settlements,omitempty"`
	SavedAt     time.Time              `json:"saved_at"`
}

// Snapshot copies the running session out of the engine.
func (e *Engine) Snapshot() (SessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRunning("snapshot"); err != nil {
		return SessionState{}, err
	}
	s := SessionState{
		Version:   SessionVersion,
		Symbol:    e.symbol,
		FillModel: e.model,
		Clock:     e.clock,
		Ledger:    e.ledger.State(),
		SavedAt:   time.Now().UTC(),
	}
	history, err := copyTrades(e.history)
	if err != nil {
		return SessionState{}, err
	}
	s.History = history
	s.Settlements = append(s.Settlements, e.settled...)
	return s, nil
}

// Restore resumes a saved session. The engine must not be running.
func (e *Engine) Restore(ctx context.Context, s SessionState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		return market.Errorf(market.KindInvalidState, "session already running on %s, reset first", e.symbol)
	}
	if s.Version != SessionVersion {
		return market.Errorf(market.KindInvalidInput, "session version %d, want %d", s.Version, SessionVersion)
	}
	model, err := execution.ParseFillModel(string(s.FillModel))
	if err != nil {
		return err
	}
	ledger, err := portfolio.Restore(s.Ledger, e.marker)
	if err != nil {
		return err
	}
	snap, err := e.provider.Quotes(ctx, s.Symbol, s.Clock)
	if err != nil {
		return err
	}

	history, err := copyTrades(s.History)
	if err != nil {
		return err
	}

	e.state = Running
	e.symbol = s.Symbol
	e.model = model
	e.clock = s.Clock
	e.snap = snap
	e.ledger = ledger
	e.history = history
	e.settled = append([]portfolio.Settlement(nil), s.Settlements...)
	e.ledger.Remark(e.clock, e.snap)
	return nil
}
