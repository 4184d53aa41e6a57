package execution

import (
	"math"

	"github.com/rustyeddy/optsim/internal/id"
	"github.com/rustyeddy/optsim/market"
)

// Policy holds the liquidity and cost parameters of the execution model.
type Policy struct {
	// ParticipationThreshold is the order size, as a fraction of the
	// quote's volume, above which slippage applies.
	ParticipationThreshold float64 `yaml:"participation_threshold" json:"participation_threshold"`
	// ImpactCoefficient scales the spread consumed per threshold-sized
	// step of excess participation.
	ImpactCoefficient float64 `yaml:"impact_coefficient" json:"impact_coefficient"`
	// MinImpact stands in for the spread when the market is locked.
	MinImpact             float64 `yaml:"min_impact" json:"min_impact"`
	CommissionPerContract float64 `yaml:"commission_per_contract" json:"commission_per_contract"`
}

func DefaultPolicy() Policy {
	return Policy{
		ParticipationThreshold: 0.10,
		ImpactCoefficient:      0.1,
		MinImpact:              0.01,
	}
}

func (p Policy) Validate() error {
	switch {
	case !(p.ParticipationThreshold > 0):
		return market.Errorf(market.KindInvalidInput, "participation threshold must be positive")
	case p.ImpactCoefficient < 0:
		return market.Errorf(market.KindInvalidInput, "impact coefficient must be non-negative")
	case p.MinImpact < 0:
		return market.Errorf(market.KindInvalidInput, "min impact must be non-negative")
	case p.CommissionPerContract < 0:
		return market.Errorf(market.KindInvalidInput, "commission must be non-negative")
	}
	return nil
}

// Participation is qty relative to the quote's volume, treating zero
// volume as one contract.
func Participation(qty int, volume int64) float64 {
	return float64(qty) / float64(max(volume, 1))
}

// Slippage is the per-contract price adjustment for trading qty against
// q. It is zero up to the participation threshold and grows linearly with
// the excess beyond it.
func (p Policy) Slippage(q market.Quote, qty int) float64 {
	part := Participation(qty, q.Volume)
	if part <= p.ParticipationThreshold {
		return 0
	}
	impact := math.Max(q.Spread(), p.MinImpact)
	excess := (part - p.ParticipationThreshold) / p.ParticipationThreshold
	return impact * p.ImpactCoefficient * excess
}

// Executor fills orders. It holds no state beyond its policy.
type Executor struct {
	policy Policy
}

func NewExecutor(p Policy) *Executor { return &Executor{policy: p} }

func (e *Executor) Policy() Policy { return e.policy }

// Execute prices order against q. Quantity is never reduced: liquidity
// moves the price, not the size.
func (e *Executor) Execute(q market.Quote, order Order, model FillModel) (Fill, error) {
	if err := order.Validate(); err != nil {
		return Fill{}, err
	}
	noLiq := func(why string) (Fill, error) {
		return Fill{}, market.Errorf(market.KindNoLiquidity, "%s", why).
			WithContract(order.Symbol).WithTime(q.Timestamp).
			WithQuantities(float64(order.Quantity), float64(q.Volume))
	}

	if q.Bid <= 0 && q.Ask <= 0 {
		return noLiq("no bid or ask")
	}
	if q.Volume == 0 && order.Limit == nil {
		return noLiq("zero volume and no limit price")
	}

	base, err := basePrice(q, order.Side, model)
	if err != nil {
		return Fill{}, err.WithContract(order.Symbol).WithTime(q.Timestamp)
	}

	slip := e.policy.Slippage(q, order.Quantity)
	price := base
	if order.Side == market.Buy {
		price = math.Min(base+slip, math.Max(2*q.Ask, base))
	} else {
		price = math.Max(base-slip, 0)
	}

	if order.Limit != nil {
		lim := *order.Limit
		if (order.Side == market.Buy && price > lim) || (order.Side == market.Sell && price < lim) {
			return Fill{}, market.Errorf(market.KindLimitNotMarketable,
				"%s at %.4f does not clear limit %.4f", order.Side, price, lim).
				WithContract(order.Symbol).WithTime(q.Timestamp).
				WithQuantities(price, lim)
		}
	}

	ts := order.Time
	if ts.IsZero() {
		ts = q.Timestamp
	}
	return Fill{
		ID:              id.New(id.FillPrefix, ts),
		OrderID:         order.ID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Requested:       order.Quantity,
		Quantity:        order.Quantity,
		Price:           price,
		BasePrice:       base,
		Slippage:        math.Abs(price - base),
		Commission:      e.policy.CommissionPerContract * float64(order.Quantity),
		UnderlyingPrice: q.UnderlyingPrice,
		Time:            ts,
	}, nil
}

func basePrice(q market.Quote, side market.Side, model FillModel) (float64, *market.Error) {
	need := func(p float64, name string) (float64, *market.Error) {
		if p <= 0 {
			return 0, market.Errorf(market.KindNoLiquidity, "no %s to fill %s %s", name, model, side)
		}
		return p, nil
	}

	switch model {
	case Midpoint:
		if q.Ask <= 0 {
			return need(0, "ask")
		}
		return q.Mid(), nil
	case Aggressive:
		if side == market.Buy {
			return need(q.Ask, "ask")
		}
		return need(q.Bid, "bid")
	case Passive:
		if side == market.Buy {
			return need(q.Bid, "bid")
		}
		return need(q.Ask, "ask")
	}
	return 0, market.Errorf(market.KindInvalidOrder, "unknown fill model %q", model)
}
