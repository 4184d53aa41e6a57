package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/portfolio"
)

func TestStatusRecord(t *testing.T) {
	t.Parallel()

	st := Status{
		State:  Running,
		Symbol: "SPY",
		Time:   at(16, 9, 30),
		Account: Account{
			Account: portfolio.Account{Cash: 94800.004999, InitialCash: 100000, UnrealizedPL: -100.0000001},
			Greeks:  market.Greeks{Delta: 312.3456789},
		},
		Positions: 1,
	}
	rec := st.Record()

	assert.Equal(t, Running, rec["state"])
	assert.Equal(t, at(16, 9, 30), rec["time"])
	assert.NotContains(t, rec, "settlements")

	acct, ok := rec["account"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 94800.0, acct["cash"], "money is rounded to cents")
	assert.Equal(t, -100.0, acct["unrealized_pl"])
	greeks, ok := acct["greeks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 312.345679, greeks["delta"])

	_, err := json.Marshal(rec)
	assert.NoError(t, err)
}

func TestTradeRecord(t *testing.T) {
	t.Parallel()

	tr := Trade{
		FillID:    "fil_1",
		Symbol:    call475,
		Side:      market.Buy,
		FillModel: execution.Aggressive,
		Quantity:  10,
		Price:     5.2200000001,
		Limit:     execution.LimitPrice(5.25),
		Time:      at(16, 9, 30),
	}
	rec := tr.Record()
	assert.Equal(t, 5.22, rec["price"])
	assert.Equal(t, 5.25, rec["limit"])
	assert.Equal(t, 10, rec["quantity"])

	tr.Limit = nil
	assert.NotContains(t, tr.Record(), "limit")
}

func TestChainRecordRows(t *testing.T) {
	t.Parallel()

	ch := Chain{
		Underlying: "SPY",
		Expiries:   []time.Time{exp19},
		Rows:       []ChainRow{{Symbol: call475, IV: 0.2812345678}, {Symbol: put475}},
	}
	rec := ch.Record()
	rows, ok := rec["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, call475, first["symbol"])
	assert.Equal(t, 0.281235, first["iv"])
}

func TestRecordsHelper(t *testing.T) {
	t.Parallel()

	recs := Records([]portfolio.Position{{Symbol: call475, Quantity: 3}}, PositionRecord)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0]["quantity"])
	assert.NotContains(t, recs[0], "Contract")
}

func TestErrorRecord(t *testing.T) {
	t.Parallel()

	ts := at(16, 9, 30)
	err := fmt.Errorf("submit: %w", market.Errorf(market.KindInsufficientFunds, "short").
		WithContract(call475).WithTime(ts).WithQuantities(5200, 1000))

	rec := ErrorRecord(err)
	assert.Equal(t, "InsufficientFunds", rec["kind"])
	assert.Equal(t, call475, rec["contract"])
	assert.Equal(t, ts, rec["timestamp"])
	assert.Equal(t, 5200.0, rec["requested"])
	assert.Equal(t, 1000.0, rec["available"])

	plain := ErrorRecord(errors.New("boom"))
	assert.Equal(t, map[string]any{"error": "boom"}, plain)
}
