package market

import (
	"sort"
	"time"
)

// Greeks are per-contract sensitivities. Theta is per calendar day, Vega
// and Rho per one percentage point move.
type Greeks struct {
	Delta float64 `json:"delta" structs:"delta"`
	Gamma float64 `json:"gamma" structs:"gamma"`
	Theta float64 `json:"theta" structs:"theta"`
	Vega  float64 `json:"vega" structs:"vega"`
	Rho   float64 `json:"rho" structs:"rho"`
}

// Quote is one contract's market state at an instant.
type Quote struct {
	Timestamp       time.Time
	Symbol          string
	Underlying      string
	UnderlyingPrice float64
	Strike          float64
	Expiry          time.Time
	Type            OptionType
	Bid             float64
	Ask             float64
	Last            float64
	Volume          int64
	OpenInterest    int64
	IV              float64

	// Greeks is nil when the source did not supply them.
	Greeks *Greeks
}

func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// HasMarket reports whether the quote carries a usable two-sided or
// one-sided market.
func (q Quote) HasMarket() bool { return q.Bid > 0 || q.Ask > 0 }

// MarkPrice is the mid when a market exists, the bid alone when there is no
// offer, else the last trade. ok is false when none is available.
func (q Quote) MarkPrice() (price float64, ok bool) {
	switch {
	case q.Bid > 0 && q.Ask <= 0:
		return q.Bid, true
	case q.HasMarket():
		return q.Mid(), true
	case q.Last > 0:
		return q.Last, true
	}
	return 0, false
}

func (q Quote) Contract() Contract {
	return Contract{
		Underlying: q.Underlying,
		Expiry:     DateOf(q.Expiry),
		Type:       q.Type,
		Strike:     q.Strike,
	}
}

// Validate checks the quote invariants: 0 <= bid <= ask, strike > 0 and
// expiry not before the quote date. A zero ask means no offer, so a
// bid-only market is accepted.
func (q Quote) Validate() error {
	switch {
	case q.Bid < 0 || q.Ask < 0:
		return Errorf(KindInvalidInput, "negative bid/ask %.4f/%.4f", q.Bid, q.Ask).WithContract(q.Symbol)
	case q.Ask > 0 && q.Bid > q.Ask:
		return Errorf(KindInvalidInput, "crossed market bid %.4f > ask %.4f", q.Bid, q.Ask).WithContract(q.Symbol)
	case !(q.Strike > 0):
		return Errorf(KindInvalidInput, "strike must be positive").WithContract(q.Symbol)
	case DateOf(q.Expiry).Before(DateOf(q.Timestamp)):
		return Errorf(KindInvalidInput, "expiry %s before quote time", q.Expiry.Format(DateLayout)).WithContract(q.Symbol).WithTime(q.Timestamp)
	}
	return nil
}

// Snapshot is the option chain of one underlying at one timestamp.
type Snapshot struct {
	Timestamp       time.Time
	Underlying      string
	UnderlyingPrice float64
	Quotes          []Quote

	index map[string]int
}

// NewSnapshot indexes quotes by symbol. The underlying price is taken from
// the first quote that carries one when price is zero.
func NewSnapshot(underlying string, ts time.Time, price float64, quotes []Quote) Snapshot {
	s := Snapshot{
		Timestamp:       ts,
		Underlying:      underlying,
		UnderlyingPrice: price,
		Quotes:          quotes,
		index:           make(map[string]int, len(quotes)),
	}
	for i, q := range quotes {
		s.index[q.Symbol] = i
		if s.UnderlyingPrice == 0 && q.UnderlyingPrice > 0 {
			s.UnderlyingPrice = q.UnderlyingPrice
		}
	}
	return s
}

// Quote looks a contract up by OCC symbol.
func (s Snapshot) Quote(symbol string) (Quote, bool) {
	if s.index != nil {
		i, ok := s.index[symbol]
		if !ok {
			return Quote{}, false
		}
		return s.Quotes[i], true
	}
	for _, q := range s.Quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}

// Expiries lists the distinct expiry dates in ascending order.
func (s Snapshot) Expiries() []time.Time {
	seen := map[time.Time]struct{}{}
	var out []time.Time
	for _, q := range s.Quotes {
		d := DateOf(q.Expiry)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ForExpiry filters the chain to one expiry date.
func (s Snapshot) ForExpiry(expiry time.Time) []Quote {
	d := DateOf(expiry)
	var out []Quote
	for _, q := range s.Quotes {
		if DateOf(q.Expiry).Equal(d) {
			out = append(out, q)
		}
	}
	return out
}

// IsZero reports whether the snapshot was never loaded.
func (s Snapshot) IsZero() bool { return s.Timestamp.IsZero() && len(s.Quotes) == 0 }
