package portfolio

import (
	"time"

	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
)

// DefaultVolatility is used when a quote carries no implied volatility and
// none can be solved from its price.
const DefaultVolatility = 0.25

// Marker values contracts from quotes, falling back to the pricing engine
// for whatever the quote source did not supply.
type Marker struct {
	Engine     pricing.Engine
	Rate       float64
	Yield      float64
	DefaultVol float64
}

func NewMarker(engine pricing.Engine, rate, yield, defaultVol float64) Marker {
	if engine == nil {
		engine = pricing.Default()
	}
	if !(defaultVol > 0) {
		defaultVol = DefaultVolatility
	}
	return Marker{Engine: engine, Rate: rate, Yield: yield, DefaultVol: defaultVol}
}

// Valuation is a contract's mark at one instant.
type Valuation struct {
	Price  float64
	IV     float64
	Greeks market.Greeks
	// Theoretical is set when Price came from the model instead of the
	// market.
	Theoretical bool
}

func (m Marker) inputs(c market.Contract, spot, vol float64, now time.Time) pricing.Inputs {
	return pricing.Inputs{
		Spot:   spot,
		Strike: c.Strike,
		Years:  market.YearsToExpiry(now, c.Expiry),
		Vol:    vol,
		Rate:   m.Rate,
		Yield:  m.Yield,
		Type:   c.Type,
	}
}

// ImpliedVol is the quote's IV, else the volatility solved from its mark,
// else the default.
func (m Marker) ImpliedVol(q market.Quote, now time.Time) float64 {
	if q.IV > 0 {
		return q.IV
	}
	if price, ok := q.MarkPrice(); ok && q.UnderlyingPrice > 0 {
		in := m.inputs(q.Contract(), q.UnderlyingPrice, 0, now)
		if vol, err := m.Engine.ImpliedVolatility(price, in); err == nil {
			return vol
		}
	}
	return m.DefaultVol
}

// Quote values a quoted contract. Market prices win; Greeks come from the
// quote when present and from the model otherwise.
func (m Marker) Quote(q market.Quote, now time.Time) Valuation {
	v := Valuation{IV: m.ImpliedVol(q, now)}

	var theo pricing.Result
	var theoErr error = market.ErrInvalidInput
	if q.UnderlyingPrice > 0 {
		theo, theoErr = m.Engine.PriceAndGreeks(m.inputs(q.Contract(), q.UnderlyingPrice, v.IV, now))
	}

	if price, ok := q.MarkPrice(); ok {
		v.Price = price
	} else if theoErr == nil {
		v.Price = theo.Price
		v.Theoretical = true
	}

	switch {
	case q.Greeks != nil:
		v.Greeks = *q.Greeks
	case theoErr == nil:
		v.Greeks = theo.Greeks
	}
	return v
}

// Theoretical values an unquoted contract from the underlying price.
func (m Marker) Theoretical(c market.Contract, spot, vol float64, now time.Time) (Valuation, error) {
	if !(vol > 0) {
		vol = m.DefaultVol
	}
	res, err := m.Engine.PriceAndGreeks(m.inputs(c, spot, vol, now))
	if err != nil {
		return Valuation{}, err
	}
	return Valuation{Price: res.Price, IV: vol, Greeks: res.Greeks, Theoretical: true}, nil
}
