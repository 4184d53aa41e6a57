package data

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
)

// OptionsFile is the file name the generator writes quotes to.
const OptionsFile = "options.csv"

// SyntheticConfig parameterises the generated market.
type SyntheticConfig struct {
	Symbol     string        `yaml:"symbol" json:"symbol"`
	BasePrice  float64       `yaml:"base_price" json:"base_price"`
	Start      time.Time     `yaml:"start" json:"start"`
	Days       int           `yaml:"days" json:"days"`
	Expiries   int           `yaml:"expiries" json:"expiries"`
	StrikeBand float64       `yaml:"strike_band" json:"strike_band"`
	StrikeStep float64       `yaml:"strike_step" json:"strike_step"`
	Interval   time.Duration `yaml:"interval" json:"interval"`
	Rate       float64       `yaml:"rate" json:"rate"`
	Seed       int64         `yaml:"seed" json:"seed"`
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Symbol:     "SPY",
		BasePrice:  475,
		Start:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Days:       5,
		Expiries:   4,
		StrikeBand: 0.05,
		StrikeStep: 1,
		Interval:   15 * time.Minute,
		Rate:       0.05,
		Seed:       42,
	}
}

func (c SyntheticConfig) Validate() error {
	switch {
	case c.Symbol == "":
		return market.Errorf(market.KindInvalidInput, "synthetic symbol is required")
	case !(c.BasePrice > 0):
		return market.Errorf(market.KindInvalidInput, "synthetic base price must be positive")
	case c.Days <= 0 || c.Expiries <= 0:
		return market.Errorf(market.KindInvalidInput, "synthetic days and expiries must be positive")
	case !(c.StrikeBand > 0) || !(c.StrikeStep > 0):
		return market.Errorf(market.KindInvalidInput, "synthetic strike band and step must be positive")
	case c.Interval < time.Minute:
		return market.Errorf(market.KindInvalidInput, "synthetic interval must be at least a minute")
	}
	return nil
}

// Dataset is a generated market.
type Dataset struct {
	Quotes []market.Quote
	Prices []PricePoint
}

// Generate builds a seeded random walk for the underlying with a weekly
// expiry ladder priced off a volatility smile.
func Generate(cfg SyntheticConfig, cal Calendar, engine pricing.Engine) (Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return Dataset{}, err
	}
	if engine == nil {
		engine = pricing.Default()
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	expiries := fridays(market.DateOf(cfg.Start), cfg.Expiries)

	var strikes []float64
	lo := math.Floor(cfg.BasePrice*(1-cfg.StrikeBand)/cfg.StrikeStep) * cfg.StrikeStep
	hi := cfg.BasePrice * (1 + cfg.StrikeBand)
	for k := lo; k <= hi+1e-9; k += cfg.StrikeStep {
		strikes = append(strikes, market.Round(k, 3))
	}

	var ds Dataset
	spot := cfg.BasePrice
	day := market.DateOf(cfg.Start)
	session := cal.session()

	for n := 0; n < cfg.Days; n++ {
		for !cal.IsTradingDay(day) {
			day = day.AddDate(0, 0, 1)
		}
		drift := rnd.NormFloat64()*0.002 + 0.0001

		for ts := session.open(day); !ts.After(session.close(day)); ts = ts.Add(cfg.Interval) {
			spot = market.Cents(spot * (1 + rnd.NormFloat64()*0.001 + drift/390))
			ds.Prices = append(ds.Prices, PricePoint{Time: ts, Symbol: cfg.Symbol, Price: spot})

			for _, exp := range expiries {
				if market.DateOf(ts).After(exp) {
					continue
				}
				for _, k := range strikes {
					for _, typ := range []market.OptionType{market.Call, market.Put} {
						q, ok, err := syntheticQuote(rnd, engine, cfg, ts, spot, exp, k, typ)
						if err != nil {
							return Dataset{}, err
						}
						if ok {
							ds.Quotes = append(ds.Quotes, q)
						}
					}
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return ds, nil
}

func syntheticQuote(rnd *rand.Rand, engine pricing.Engine, cfg SyntheticConfig, ts time.Time, spot float64, exp time.Time, k float64, typ market.OptionType) (market.Quote, bool, error) {
	m := spot / k
	iv := math.Max(0.18+0.05*(m-1)*(m-1)+rnd.NormFloat64()*0.005, 0.05)

	res, err := engine.PriceAndGreeks(pricing.Inputs{
		Spot: spot, Strike: k, Years: market.YearsToExpiry(ts, exp), Vol: iv, Rate: cfg.Rate, Type: typ,
	})
	if err != nil {
		return market.Quote{}, false, err
	}
	theo := res.Price
	if theo < 0.01 {
		return market.Quote{}, false, nil
	}

	dist := math.Abs(spot-k) / spot
	spread := math.Min(math.Max(theo*(0.02+dist*0.15), 0.01), theo*0.5)
	bid := market.Cents(math.Max(theo-spread/2, 0.01))
	ask := market.Cents(theo + spread/2)
	if ask < bid {
		ask = bid
	}
	last := math.Max(market.Cents(theo+rnd.NormFloat64()*spread*0.1), 0.01)

	volume := int64(math.Max(1, 5000*math.Exp(-10*dist*dist)))
	volume = max(1, int64(float64(volume)*(0.3+rnd.Float64()*1.4)))
	oi := max(10, int64(float64(volume)*(5+rnd.Float64()*45)))

	c, err := market.NewContract(cfg.Symbol, exp, typ, k)
	if err != nil {
		return market.Quote{}, false, err
	}
	return market.Quote{
		Timestamp:       ts,
		Symbol:          c.Symbol(),
		Underlying:      c.Underlying,
		UnderlyingPrice: spot,
		Strike:          k,
		Expiry:          exp,
		Type:            typ,
		Bid:             bid,
		Ask:             ask,
		Last:            last,
		Volume:          volume,
		OpenInterest:    oi,
		IV:              market.Round(iv, 6),
		Greeks: &market.Greeks{
			Delta: market.Round(res.Delta, 6),
			Gamma: market.Round(res.Gamma, 6),
			Theta: market.Round(res.Theta, 6),
			Vega:  market.Round(res.Vega, 6),
			Rho:   market.Round(res.Rho, 6),
		},
	}, true, nil
}

// fridays returns the next n Fridays strictly after start.
func fridays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := start
	for len(out) < n {
		ahead := (int(time.Friday) - int(d.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		d = d.AddDate(0, 0, ahead)
		out = append(out, d)
	}
	return out
}

// Provider loads the dataset into a Memory provider.
func (d Dataset) Provider(cal Calendar) (*Memory, error) {
	mem := NewMemory(cal)
	if err := mem.AddQuotes(d.Quotes...); err != nil {
		return nil, err
	}
	for _, p := range d.Prices {
		mem.SetUnderlyingPrice(p.Symbol, p.Time, p.Price)
	}
	return mem, nil
}

// WriteDir writes options.csv and underlying.csv into dir.
func (d Dataset) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := WriteQuotesCSV(filepath.Join(dir, OptionsFile), d.Quotes); err != nil {
		return err
	}
	return WriteUnderlyingCSV(filepath.Join(dir, UnderlyingFile), d.Prices)
}
