package scanner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/sim"
)

func row(symbol string, strike, bid, iv, theta float64, volume, oi int64) sim.ChainRow {
	return sim.ChainRow{
		Symbol:       symbol,
		Strike:       strike,
		Bid:          bid,
		Ask:          bid + 0.1,
		IV:           iv,
		Volume:       volume,
		OpenInterest: oi,
		Greeks:       market.Greeks{Theta: theta},
	}
}

func chain() sim.Chain {
	return sim.Chain{
		Underlying:      "SPY",
		UnderlyingPrice: 100,
		Rows: []sim.ChainRow{
			row("A", 90, 10.5, 0.30, -0.01, 10, 100),
			row("B", 95, 6.0, 0.25, -0.03, 500, 100),
			row("C", 100, 3.0, 0.20, -0.05, 300, 100),
			row("D", 105, 1.0, 0.22, -0.04, 50, 0),
			row("E", 120, 0, 0.40, -0.02, 0, 100),
		},
	}
}

func symbols(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Symbol
	}
	return out
}

func TestScanHighIV(t *testing.T) {
	t.Parallel()

	rs, err := ScanHighIV(chain().Rows, 50)
	require.NoError(t, err)
	// Threshold is the median IV 0.25; E has no bid.
	assert.Equal(t, []string{"A", "B"}, symbols(rs))
	assert.Equal(t, HighIV, rs[0].Scan)
	assert.Equal(t, 60.0, rs[0].Score, "three of five IVs lie below 0.30")

	all, err := ScanHighIV(chain().Rows, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = ScanHighIV(chain().Rows, 101)
	assert.True(t, errors.Is(err, market.ErrInvalidInput))

	none, err := ScanHighIV(nil, 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestScanUnusualVolume(t *testing.T) {
	t.Parallel()

	rs := ScanUnusualVolume(chain().Rows, 2)
	assert.Equal(t, []string{"B", "C"}, symbols(rs))
	assert.Equal(t, 5.0, rs[0].Score)
}

func TestScanNearMoney(t *testing.T) {
	t.Parallel()

	rs, err := ScanNearMoney(chain().Rows, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "D"}, symbols(rs))
	assert.Zero(t, rs[0].Score)
	assert.InDelta(t, 5.0, rs[1].Score, 1e-12)

	_, err = ScanNearMoney(chain().Rows, 0, 5)
	assert.True(t, errors.Is(err, market.ErrInvalidInput))
}

func TestScanHighTheta(t *testing.T) {
	t.Parallel()

	// Median |theta| of 0.01..0.05 is 0.03; E has no bid.
	rs := ScanHighTheta(chain().Rows, 0)
	assert.Equal(t, []string{"C", "D", "B"}, symbols(rs))

	rs = ScanHighTheta(chain().Rows, 0.045)
	assert.Equal(t, []string{"C"}, symbols(rs))
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind Kind
		opts Options
		want []string
	}{
		{"high iv default", HighIV, Options{}, []string{"A", "B"}},
		{"unusual volume lower ratio", UnusualVolume, Options{VolumeOIRatio: 1}, []string{"B", "C"}},
		{"near money wide", NearMoney, Options{RangePct: 10}, []string{"C", "B", "D", "A"}},
		{"high theta limited", HighTheta, Options{Limit: 1}, []string{"C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Run(tt.kind, chain(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, symbols(rs))
		})
	}

	_, err := Run("gamma_squeeze", chain(), Options{})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("High-IV")
	require.NoError(t, err)
	assert.Equal(t, HighIV, k)

	_, err = ParseKind("earnings")
	assert.True(t, errors.Is(err, market.ErrInvalidInput))
}

func TestResultRecord(t *testing.T) {
	t.Parallel()

	rec := Result{ChainRow: row("A", 90, 10.5, 0.3, -0.01, 10, 100), Scan: HighIV, Score: 61.23456}.Record()
	assert.Equal(t, "A", rec["symbol"])
	assert.Equal(t, HighIV, rec["scan"])
	assert.Equal(t, 61.2346, rec["score"])
}
