// Package pricing implements closed-form Black-Scholes-Merton prices,
// Greeks and implied volatility for European options.
package pricing

import (
	"math"

	"github.com/rustyeddy/optsim/market"
)

// Engine prices European options. Implementations must agree on numeric
// semantics; they differ only in how the normal distribution is evaluated.
type Engine interface {
	PriceAndGreeks(in Inputs) (Result, error)
	ImpliedVolatility(marketPrice float64, in Inputs) (float64, error)
}

// Inputs to the model. Years is time to expiry in years, Vol, Rate and
// Yield are annualised decimals (0.25 = 25%).
type Inputs struct {
	Spot   float64
	Strike float64
	Years  float64
	Vol    float64
	Rate   float64
	Yield  float64
	Type   market.OptionType
}

type Result struct {
	Price float64
	market.Greeks
}

// BlackScholes is the closed-form model over a pluggable normal backend.
type BlackScholes struct {
	backend string
	n       normal
}

// New returns the model using the named normal backend ("gonum" when empty).
func New(backend string) (*BlackScholes, error) {
	n, err := newNormal(backend)
	if err != nil {
		return nil, market.Errorf(market.KindInvalidInput, "%v", err)
	}
	if backend == "" {
		backend = BackendGonum
	}
	return &BlackScholes{backend: backend, n: n}, nil
}

// Default is the gonum backed model.
func Default() *BlackScholes {
	b, _ := New(BackendGonum)
	return b
}

func (b *BlackScholes) Backend() string { return b.backend }

func (in Inputs) validate(checkVol bool) error {
	bad := func(field string, v float64) error {
		return market.Errorf(market.KindInvalidInput, "%s %v out of domain", field, v)
	}
	switch {
	case !(in.Spot > 0) || math.IsInf(in.Spot, 0):
		return bad("underlying price", in.Spot)
	case !(in.Strike > 0) || math.IsInf(in.Strike, 0):
		return bad("strike", in.Strike)
	case !(in.Years >= 0) || math.IsInf(in.Years, 0):
		return bad("time to expiry", in.Years)
	case checkVol && (!(in.Vol >= 0) || math.IsInf(in.Vol, 0)):
		return bad("volatility", in.Vol)
	case math.IsNaN(in.Rate) || math.IsNaN(in.Yield):
		return market.Errorf(market.KindInvalidInput, "rate/yield is NaN")
	case in.Type != market.Call && in.Type != market.Put:
		return market.Errorf(market.KindInvalidInput, "option type %q", in.Type)
	}
	return nil
}

// PriceAndGreeks evaluates the model. At expiry the price is intrinsic
// value and only delta survives; with zero volatility the price is the
// discounted forward intrinsic value with zero gamma and vega.
func (b *BlackScholes) PriceAndGreeks(in Inputs) (Result, error) {
	if err := in.validate(true); err != nil {
		return Result{}, err
	}
	if in.Years == 0 {
		return atExpiry(in), nil
	}
	if in.Vol*math.Sqrt(in.Years) == 0 {
		return zeroVol(in), nil
	}
	return b.closedForm(in), nil
}

func (b *BlackScholes) closedForm(in Inputs) Result {
	S, K, T, r, q, sigma := in.Spot, in.Strike, in.Years, in.Rate, in.Yield, in.Vol
	sqrtT := math.Sqrt(T)
	sdev := sigma * sqrtT
	dq := math.Exp(-q * T)
	dr := math.Exp(-r * T)

	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / sdev
	d2 := d1 - sdev
	pdf := b.n.PDF(d1)

	var res Result
	res.Gamma = dq * pdf / (S * sdev)
	res.Vega = S * dq * pdf * sqrtT / 100

	decay := -S * dq * pdf * sigma / (2 * sqrtT)
	if in.Type == market.Call {
		nd1, nd2 := b.n.CDF(d1), b.n.CDF(d2)
		res.Price = S*dq*nd1 - K*dr*nd2
		res.Delta = dq * nd1
		res.Theta = (decay - r*K*dr*nd2 + q*S*dq*nd1) / 365
		res.Rho = K * T * dr * nd2 / 100
	} else {
		nd1, nd2 := b.n.CDF(-d1), b.n.CDF(-d2)
		res.Price = K*dr*nd2 - S*dq*nd1
		res.Delta = -dq * nd1
		res.Theta = (decay + r*K*dr*nd2 - q*S*dq*nd1) / 365
		res.Rho = -K * T * dr * nd2 / 100
	}
	return res
}

func atExpiry(in Inputs) Result {
	var res Result
	contract := market.Contract{Type: in.Type, Strike: in.Strike}
	res.Price = contract.Intrinsic(in.Spot)

	switch {
	case in.Spot == in.Strike:
		res.Delta = 0.5
	case in.Type == market.Call && in.Spot > in.Strike:
		res.Delta = 1
	case in.Type == market.Put && in.Spot < in.Strike:
		res.Delta = 1
	}
	if in.Type == market.Put {
		res.Delta = -res.Delta
	}
	return res
}

func zeroVol(in Inputs) Result {
	S, K, T, r, q := in.Spot, in.Strike, in.Years, in.Rate, in.Yield
	fs := S * math.Exp(-q*T)
	fk := K * math.Exp(-r*T)

	var res Result
	if in.Type == market.Call {
		switch x := fs - fk; {
		case x > 0:
			res.Price = x
			res.Delta = fs / S
			res.Theta = (q*fs - r*fk) / 365
			res.Rho = K * T * math.Exp(-r*T) / 100
		case x == 0:
			res.Delta = 0.5 * fs / S
		}
		return res
	}

	switch y := fk - fs; {
	case y > 0:
		res.Price = y
		res.Delta = -fs / S
		res.Theta = (r*fk - q*fs) / 365
		res.Rho = -K * T * math.Exp(-r*T) / 100
	case y == 0:
		res.Delta = -0.5 * fs / S
	}
	return res
}

// bounds are the no-arbitrage limits on a European option price.
func bounds(in Inputs) (lower, upper float64) {
	fs := in.Spot * math.Exp(-in.Yield*in.Years)
	fk := in.Strike * math.Exp(-in.Rate*in.Years)
	if in.Type == market.Call {
		return math.Max(fs-fk, 0), fs
	}
	return math.Max(fk-fs, 0), fk
}
