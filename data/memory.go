package data

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/optsim/market"
)

// Memory holds option chains in memory, indexed by underlying and time.
// The CSV loader and the synthetic generator both fill one.
type Memory struct {
	mu     sync.Mutex
	cal    Calendar
	series map[string]*series
}

type series struct {
	times  []time.Time // sorted, unique
	quotes map[time.Time][]market.Quote
	prices map[time.Time]float64
	sorted bool
}

func NewMemory(cal Calendar) *Memory {
	return &Memory{cal: cal, series: map[string]*series{}}
}

func (m *Memory) Calendar() Calendar { return m.cal }

func (m *Memory) get(symbol string) *series {
	s, ok := m.series[symbol]
	if !ok {
		s = &series{quotes: map[time.Time][]market.Quote{}, prices: map[time.Time]float64{}}
		m.series[symbol] = s
	}
	return s
}

func (s *series) touch(ts time.Time) {
	if _, ok := s.quotes[ts]; ok {
		return
	}
	s.quotes[ts] = nil
	s.times = append(s.times, ts)
	s.sorted = false
}

// AddQuotes stores quotes under their underlying and timestamp. Symbols are
// derived from the contract fields; a supplied symbol must match them.
func (m *Memory) AddQuotes(quotes ...market.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range quotes {
		q.Underlying = strings.ToUpper(strings.TrimSpace(q.Underlying))
		c, err := market.NewContract(q.Underlying, q.Expiry, q.Type, q.Strike)
		if err != nil {
			return err
		}
		switch sym := c.Symbol(); {
		case q.Symbol == "":
			q.Symbol = sym
		case q.Symbol != sym:
			return market.Errorf(market.KindInvalidInput, "symbol %s does not match contract fields %s", q.Symbol, sym).
				WithContract(q.Symbol).WithTime(q.Timestamp)
		}
		if err := q.Validate(); err != nil {
			return err
		}
		s := m.get(q.Underlying)
		s.touch(q.Timestamp)
		s.quotes[q.Timestamp] = append(s.quotes[q.Timestamp], q)
	}
	return nil
}

// SetUnderlyingPrice records the underlying's price at ts. It takes
// precedence over prices carried on the quotes.
func (m *Memory) SetUnderlyingPrice(symbol string, ts time.Time, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(strings.ToUpper(symbol)).prices[ts] = price
}

func (m *Memory) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.series))
	for sym, s := range m.series {
		if len(s.times) > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Dates lists the calendar dates symbol has data on.
func (m *Memory) Dates(symbol string) []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[symbol]
	if !ok {
		return nil
	}
	var out []time.Time
	for _, ts := range s.sortedTimes() {
		d := market.DateOf(ts)
		if len(out) == 0 || !out[len(out)-1].Equal(d) {
			out = append(out, d)
		}
	}
	return out
}

// Len is the number of quotes held for symbol.
func (m *Memory) Len(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	if s, ok := m.series[symbol]; ok {
		for _, qs := range s.quotes {
			n += len(qs)
		}
	}
	return n
}

func (s *series) sortedTimes() []time.Time {
	if !s.sorted {
		sort.Slice(s.times, func(i, j int) bool { return s.times[i].Before(s.times[j]) })
		s.sorted = true
	}
	return s.times
}

// lookup returns the series for symbol with its times sorted. The caller
// holds m.mu.
func (m *Memory) lookup(symbol string) (*series, []time.Time, error) {
	s, ok := m.series[symbol]
	if !ok || len(s.times) == 0 {
		return nil, nil, market.Errorf(market.KindNoDataForSymbol, "no data for %s", symbol)
	}
	return s, s.sortedTimes(), nil
}

func (m *Memory) Quotes(ctx context.Context, symbol string, ts time.Time) (market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, times, err := m.lookup(symbol)
	if err != nil {
		return market.Snapshot{}, err
	}

	i := sort.Search(len(times), func(i int) bool { return times[i].After(ts) })
	if i == 0 {
		return market.Snapshot{}, market.Errorf(market.KindNoDataForSymbol,
			"no %s data at or before requested time", symbol).WithTime(ts)
	}
	at := times[i-1]

	raw := s.quotes[at]
	price := m.underlyingPrice(s, times, i-1, raw)
	quotes := make([]market.Quote, len(raw))
	for k, q := range raw {
		if q.UnderlyingPrice == 0 {
			q.UnderlyingPrice = price
		}
		quotes[k] = q
	}
	return market.NewSnapshot(symbol, at, price, quotes), nil
}

// underlyingPrice resolves the price at times[i]: an explicit price, else
// one carried on the quotes, else the latest earlier explicit price, else
// the median strike.
func (m *Memory) underlyingPrice(s *series, times []time.Time, i int, quotes []market.Quote) float64 {
	if p, ok := s.prices[times[i]]; ok {
		return p
	}
	for _, q := range quotes {
		if q.UnderlyingPrice > 0 {
			return q.UnderlyingPrice
		}
	}
	for j := i - 1; j >= 0; j-- {
		if p, ok := s.prices[times[j]]; ok {
			return p
		}
	}
	if len(quotes) == 0 {
		return 0
	}
	strikes := make([]float64, len(quotes))
	for k, q := range quotes {
		strikes[k] = q.Strike
	}
	sort.Float64s(strikes)
	n := len(strikes)
	if n%2 == 1 {
		return strikes[n/2]
	}
	return (strikes[n/2-1] + strikes[n/2]) / 2
}

func (m *Memory) NextTimestamp(ctx context.Context, symbol string, after time.Time, minutes int) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	if minutes < 0 {
		return time.Time{}, false, market.Errorf(market.KindInvalidInput, "minutes must be non-negative, got %d", minutes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, times, err := m.lookup(symbol)
	if err != nil {
		return time.Time{}, false, err
	}

	target := m.cal.Advance(after, minutes)
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(target) })
	if i == len(times) {
		return time.Time{}, false, nil
	}
	return times[i], true, nil
}
