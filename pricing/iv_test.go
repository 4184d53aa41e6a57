package pricing

import (
	"errors"
	"testing"

	"github.com/rustyeddy/optsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	t.Parallel()

	vols := []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2}
	for _, backend := range []string{BackendGonum, BackendGaussian} {
		bs, err := New(backend)
		require.NoError(t, err)

		for _, k := range []float64{90, 100, 110} {
			for _, years := range []float64{0.25, 1} {
				for _, rate := range []float64{0, 0.05} {
					for _, vol := range vols {
						for _, typ := range []market.OptionType{market.Call, market.Put} {
							in := Inputs{Spot: 100, Strike: k, Years: years, Vol: vol, Rate: rate, Type: typ}
							res, err := bs.PriceAndGreeks(in)
							require.NoError(t, err)

							in.Vol = 0
							got, err := bs.ImpliedVolatility(res.Price, in)
							require.NoError(t, err, "%s K=%v T=%v r=%v vol=%v %s", backend, k, years, rate, vol, typ)
							assert.InDelta(t, vol, got, 1e-4, "%s K=%v T=%v r=%v %s", backend, k, years, rate, typ)
						}
					}
				}
			}
		}
	}
}

func TestImpliedVolatilityFallsBackToBisection(t *testing.T) {
	t.Parallel()

	// Far out of the money: vega at the 0.3 seed is effectively zero.
	bs := Default()
	in := Inputs{Spot: 100, Strike: 250, Years: 0.1, Vol: 1.8, Type: market.Call}
	res, err := bs.PriceAndGreeks(in)
	require.NoError(t, err)

	_, ok := bs.newton(res.Price, in)
	assert.False(t, ok)

	got, err := bs.ImpliedVolatility(res.Price, in)
	require.NoError(t, err)
	assert.InDelta(t, 1.8, got, 1e-4)
}

func TestImpliedVolatilityErrors(t *testing.T) {
	t.Parallel()

	bs := Default()
	tests := []struct {
		name  string
		price float64
		in    Inputs
		kind  market.Kind
	}{
		{"below intrinsic", 5, Inputs{Spot: 110, Strike: 100, Years: 0.5, Type: market.Call}, market.KindConvergence},
		{"above spot", 101, Inputs{Spot: 100, Strike: 100, Years: 0.5, Type: market.Call}, market.KindConvergence},
		{"above discounted strike", 100, Inputs{Spot: 100, Strike: 100, Years: 0.5, Rate: 0.05, Type: market.Put}, market.KindConvergence},
		{"above max vol price", 99, Inputs{Spot: 100, Strike: 100, Years: 0.1, Type: market.Call}, market.KindConvergence},
		{"expired", 1, Inputs{Spot: 100, Strike: 100, Type: market.Call}, market.KindConvergence},
		{"bad spot", 1, Inputs{Spot: 0, Strike: 100, Years: 1, Type: market.Call}, market.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bs.ImpliedVolatility(tt.price, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, market.KindOf(err))
			if tt.kind == market.KindConvergence {
				assert.True(t, errors.Is(err, market.ErrConvergence))
			}
		})
	}
}
