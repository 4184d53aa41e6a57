package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/rustyeddy/optsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atm(typ market.OptionType) Inputs {
	return Inputs{Spot: 100, Strike: 100, Years: 1, Vol: 0.2, Rate: 0.05, Type: typ}
}

func TestReferenceValues(t *testing.T) {
	t.Parallel()

	bs := Default()

	call, err := bs.PriceAndGreeks(atm(market.Call))
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, call.Price, 1e-4)
	assert.InDelta(t, 0.6368, call.Delta, 1e-4)
	assert.InDelta(t, 0.018762, call.Gamma, 1e-6)
	assert.InDelta(t, 0.375240, call.Vega, 1e-6)
	assert.InDelta(t, -0.017573, call.Theta, 1e-6)
	assert.InDelta(t, 0.532325, call.Rho, 1e-6)

	put, err := bs.PriceAndGreeks(atm(market.Put))
	require.NoError(t, err)
	assert.InDelta(t, 5.5735, put.Price, 1e-4)
	assert.InDelta(t, call.Delta-1, put.Delta, 1e-12)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
	assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	assert.InDelta(t, -0.004542, put.Theta, 1e-6)
}

func TestPutCallParity(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{BackendGonum, BackendGaussian} {
		bs, err := New(backend)
		require.NoError(t, err)

		for _, k := range []float64{50, 90, 100, 110, 200} {
			for _, years := range []float64{1.0 / 365, 0.1, 0.5, 2} {
				for _, vol := range []float64{0.01, 0.2, 0.8, 3} {
					for _, q := range []float64{0, 0.02} {
						in := Inputs{Spot: 100, Strike: k, Years: years, Vol: vol, Rate: 0.05, Yield: q}

						in.Type = market.Call
						c, err := bs.PriceAndGreeks(in)
						require.NoError(t, err)
						in.Type = market.Put
						p, err := bs.PriceAndGreeks(in)
						require.NoError(t, err)

						fwd := 100*math.Exp(-q*years) - k*math.Exp(-0.05*years)
						assert.InDelta(t, fwd, c.Price-p.Price, 1e-6, "%s K=%v T=%v vol=%v q=%v", backend, k, years, vol, q)
					}
				}
			}
		}
	}
}

func TestGreekSigns(t *testing.T) {
	t.Parallel()

	bs := Default()
	for _, k := range []float64{60, 95, 100, 105, 150} {
		for _, years := range []float64{0.01, 0.25, 1, 3} {
			for _, vol := range []float64{0.05, 0.3, 1.5} {
				// Zero rate: a deep in-the-money European put carries
				// positive theta once discounting dominates.
				in := Inputs{Spot: 100, Strike: k, Years: years, Vol: vol}

				in.Type = market.Call
				c, err := bs.PriceAndGreeks(in)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, c.Delta, 0.0)
				assert.LessOrEqual(t, c.Delta, 1.0)
				assert.GreaterOrEqual(t, c.Gamma, 0.0)
				assert.LessOrEqual(t, c.Theta, 0.0)

				in.Type = market.Put
				p, err := bs.PriceAndGreeks(in)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, p.Delta, -1.0)
				assert.LessOrEqual(t, p.Delta, 0.0)
				assert.GreaterOrEqual(t, p.Gamma, 0.0)
				assert.LessOrEqual(t, p.Theta, 0.0)
			}
		}
	}
}

func TestExpiryPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		spot      float64
		typ       market.OptionType
		wantPrice float64
		wantDelta float64
	}{
		{"itm call", 110, market.Call, 10, 1},
		{"otm call", 90, market.Call, 0, 0},
		{"atm call", 100, market.Call, 0, 0.5},
		{"itm put", 90, market.Put, 10, -1},
		{"otm put", 110, market.Put, 0, 0},
		{"atm put", 100, market.Put, 0, -0.5},
	}

	bs := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := bs.PriceAndGreeks(Inputs{Spot: tt.spot, Strike: 100, Vol: 0.3, Rate: 0.05, Type: tt.typ})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, res.Price)
			assert.Equal(t, tt.wantDelta, res.Delta)
			assert.Zero(t, res.Gamma)
			assert.Zero(t, res.Theta)
			assert.Zero(t, res.Vega)
			assert.Zero(t, res.Rho)
		})
	}
}

func TestZeroVolatility(t *testing.T) {
	t.Parallel()

	bs := Default()
	disc := math.Exp(-0.05)

	call, err := bs.PriceAndGreeks(Inputs{Spot: 110, Strike: 100, Years: 1, Rate: 0.05, Type: market.Call})
	require.NoError(t, err)
	assert.InDelta(t, 110-100*disc, call.Price, 1e-12)
	assert.Equal(t, 1.0, call.Delta)
	assert.Zero(t, call.Gamma)
	assert.Zero(t, call.Vega)
	assert.InDelta(t, -0.05*100*disc/365, call.Theta, 1e-12)
	assert.InDelta(t, 100*disc/100, call.Rho, 1e-12)

	put, err := bs.PriceAndGreeks(Inputs{Spot: 110, Strike: 100, Years: 1, Rate: 0.05, Type: market.Put})
	require.NoError(t, err)
	assert.Zero(t, put.Price)
	assert.Zero(t, put.Delta)

	deep, err := bs.PriceAndGreeks(Inputs{Spot: 80, Strike: 100, Years: 1, Rate: 0.05, Type: market.Put})
	require.NoError(t, err)
	assert.InDelta(t, 100*disc-80, deep.Price, 1e-12)
	assert.Equal(t, -1.0, deep.Delta)
}

func TestInvalidInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(*Inputs)
	}{
		{"zero spot", func(in *Inputs) { in.Spot = 0 }},
		{"negative strike", func(in *Inputs) { in.Strike = -1 }},
		{"negative time", func(in *Inputs) { in.Years = -0.1 }},
		{"negative vol", func(in *Inputs) { in.Vol = -0.2 }},
		{"nan vol", func(in *Inputs) { in.Vol = math.NaN() }},
		{"nan rate", func(in *Inputs) { in.Rate = math.NaN() }},
		{"no type", func(in *Inputs) { in.Type = "" }},
	}

	bs := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := atm(market.Call)
			tt.mod(&in)
			_, err := bs.PriceAndGreeks(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, market.ErrInvalidInput))
		})
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()

	g, err := New(BackendGaussian)
	require.NoError(t, err)
	assert.Equal(t, BackendGaussian, g.Backend())

	d, err := New("")
	require.NoError(t, err)
	assert.Equal(t, BackendGonum, d.Backend())

	_, err = New("quantlib")
	assert.True(t, errors.Is(err, market.ErrInvalidInput))

	for _, k := range []float64{80, 100, 120} {
		for _, typ := range []market.OptionType{market.Call, market.Put} {
			in := Inputs{Spot: 100, Strike: k, Years: 0.5, Vol: 0.35, Rate: 0.03, Yield: 0.01, Type: typ}
			a, err := d.PriceAndGreeks(in)
			require.NoError(t, err)
			b, err := g.PriceAndGreeks(in)
			require.NoError(t, err)

			// go-gaussian's Erfc is good to about 1e-7
			assert.InDelta(t, a.Price, b.Price, 1e-5)
			assert.InDelta(t, a.Delta, b.Delta, 1e-6)
			assert.InDelta(t, a.Gamma, b.Gamma, 1e-6)
			assert.InDelta(t, a.Theta, b.Theta, 1e-6)
			assert.InDelta(t, a.Vega, b.Vega, 1e-6)
			assert.InDelta(t, a.Rho, b.Rho, 1e-6)
		}
	}
}
