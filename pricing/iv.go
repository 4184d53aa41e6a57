package pricing

import (
	"math"

	"github.com/rustyeddy/optsim/market"
)

// Solver bounds. The volatility bracket also limits the price range a
// solve can reach.
const (
	VolSeed  = 0.3
	VolMin   = 0.001
	VolMax   = 5.0
	PriceTol = 1e-10

	newtonIters    = 50
	bisectIters    = 200
	minVega        = 1e-8
	divergenceGrow = 2.0
)

// ImpliedVolatility solves for the volatility that reproduces marketPrice.
// in.Vol is ignored. Newton-Raphson from VolSeed is tried first and
// bisection over [VolMin, VolMax] takes over when vega vanishes or the
// iteration leaves the bracket or stops improving.
func (b *BlackScholes) ImpliedVolatility(marketPrice float64, in Inputs) (float64, error) {
	if err := in.validate(false); err != nil {
		return 0, err
	}
	fail := func(format string, args ...any) (float64, error) {
		return 0, market.Errorf(market.KindConvergence, format, args...)
	}
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		return fail("market price %v", marketPrice)
	}
	if in.Years == 0 {
		return fail("no time value at expiry")
	}

	lower, upper := bounds(in)
	if marketPrice < lower-PriceTol || marketPrice > upper+PriceTol {
		return fail("price %.6f outside no-arbitrage range [%.6f, %.6f]", marketPrice, lower, upper)
	}

	priceAt := func(vol float64) float64 {
		in.Vol = vol
		return b.closedForm(in).Price
	}
	lo, hi := priceAt(VolMin), priceAt(VolMax)
	if marketPrice < lo-PriceTol || marketPrice > hi+PriceTol {
		return fail("price %.6f not reachable with volatility in [%g, %g]", marketPrice, VolMin, VolMax)
	}

	if vol, ok := b.newton(marketPrice, in); ok {
		return vol, nil
	}
	return b.bisect(marketPrice, in, lo, hi)
}

func (b *BlackScholes) newton(target float64, in Inputs) (float64, bool) {
	vol := VolSeed
	prevDiff := math.Inf(1)

	for i := 0; i < newtonIters; i++ {
		in.Vol = vol
		res := b.closedForm(in)
		diff := res.Price - target
		if math.Abs(diff) <= PriceTol {
			return vol, true
		}
		if math.IsNaN(diff) || math.Abs(diff) > divergenceGrow*math.Abs(prevDiff) {
			return 0, false
		}

		vega := res.Vega * 100
		if vega < minVega {
			return 0, false
		}
		next := vol - diff/vega
		if math.IsNaN(next) || next < VolMin || next > VolMax {
			return 0, false
		}
		prevDiff = diff
		vol = next
	}
	return 0, false
}

func (b *BlackScholes) bisect(target float64, in Inputs, pLo, pHi float64) (float64, error) {
	lo, hi := VolMin, VolMax
	if math.Abs(pLo-target) <= PriceTol {
		return lo, nil
	}
	if math.Abs(pHi-target) <= PriceTol {
		return hi, nil
	}

	for i := 0; i < bisectIters; i++ {
		mid := 0.5 * (lo + hi)
		in.Vol = mid
		p := b.closedForm(in).Price
		diff := p - target
		if math.Abs(diff) <= PriceTol {
			return mid, nil
		}
		if diff > 0 {
			hi = mid
		} else {
			lo = mid
		}
		// The bracket collapsed below float resolution; the price is as
		// close as this model can get.
		if hi-lo <= 1e-15 {
			return mid, nil
		}
	}
	return 0, market.Errorf(market.KindConvergence,
		"no volatility within %d iterations for price %.6f", bisectIters, target)
}
