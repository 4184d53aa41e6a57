// Package data supplies option chains to the simulator. Every source,
// whether files on disk or generated in memory, is served through the
// Provider interface.
package data

import (
	"context"
	"time"

	"github.com/rustyeddy/optsim/market"
)

// Provider is the data access contract of the orchestrator.
type Provider interface {
	// Quotes returns the chain for symbol at the latest data timestamp at
	// or before ts.
	Quotes(ctx context.Context, symbol string, ts time.Time) (market.Snapshot, error)

	// NextTimestamp advances after by minutes of trading time and returns
	// the first data timestamp at or after the result. ok is false when
	// the data runs out.
	NextTimestamp(ctx context.Context, symbol string, after time.Time, minutes int) (next time.Time, ok bool, err error)
}

// Catalog is implemented by providers that can enumerate what they hold.
type Catalog interface {
	Symbols() []string
	Dates(symbol string) []time.Time
}
