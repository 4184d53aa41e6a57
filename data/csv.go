package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rustyeddy/optsim/market"
)

// UnderlyingFile is the optional per-directory file of underlying prices.
const UnderlyingFile = "underlying.csv"

// TimestampLayout is the layout written to data files.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	market.DateLayout,
}

// csvTime is a zone-less wall clock timestamp.
type csvTime struct{ time.Time }

func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	if v, err := time.Parse(time.RFC3339, s); err == nil {
		// Keep the wall clock, drop the zone.
		t.Time = time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), 0, time.UTC)
		return nil
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (t csvTime) MarshalCSV() (string, error) { return t.Format(TimestampLayout), nil }

type csvDate struct{ time.Time }

func (d *csvDate) UnmarshalCSV(s string) error {
	v, err := time.Parse(market.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("cannot parse expiry %q", s)
	}
	d.Time = v
	return nil
}

func (d csvDate) MarshalCSV() (string, error) { return d.Format(market.DateLayout), nil }

// optFloat distinguishes an empty cell from zero.
type optFloat struct {
	v  float64
	ok bool
}

func (f *optFloat) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = optFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = optFloat{v: v, ok: true}
	return nil
}

func (f optFloat) MarshalCSV() (string, error) {
	if !f.ok {
		return "", nil
	}
	return strconv.FormatFloat(f.v, 'f', -1, 64), nil
}

func some(v float64) optFloat { return optFloat{v: v, ok: true} }

// optionRow is one line of an options data file.
type optionRow struct {
	Timestamp       csvTime  `csv:"timestamp"`
	Symbol          string   `csv:"symbol"`
	Underlying      string   `csv:"underlying"`
	UnderlyingPrice optFloat `csv:"underlying_price"`
	Strike          float64  `csv:"strike"`
	Expiry          csvDate  `csv:"expiry"`
	OptionType      string   `csv:"option_type"`
	Bid             float64  `csv:"bid"`
	Ask             float64  `csv:"ask"`
	Last            float64  `csv:"last"`
	Volume          int64    `csv:"volume"`
	OpenInterest    int64    `csv:"open_interest"`
	IV              float64  `csv:"iv"`
	Delta           optFloat `csv:"delta"`
	Gamma           optFloat `csv:"gamma"`
	Theta           optFloat `csv:"theta"`
	Vega            optFloat `csv:"vega"`
	Rho             optFloat `csv:"rho"`
}

type underlyingRow struct {
	Timestamp csvTime `csv:"timestamp"`
	Symbol    string  `csv:"symbol"`
	Price     float64 `csv:"price"`
}

func (r optionRow) quote() (market.Quote, error) {
	typ, err := market.ParseOptionType(r.OptionType)
	if err != nil {
		return market.Quote{}, err
	}
	q := market.Quote{
		Timestamp:    r.Timestamp.Time,
		Symbol:       strings.TrimSpace(r.Symbol),
		Underlying:   strings.ToUpper(strings.TrimSpace(r.Underlying)),
		Strike:       r.Strike,
		Expiry:       r.Expiry.Time,
		Type:         typ,
		Bid:          r.Bid,
		Ask:          r.Ask,
		Last:         r.Last,
		Volume:       r.Volume,
		OpenInterest: r.OpenInterest,
		IV:           r.IV,
	}
	if r.UnderlyingPrice.ok {
		q.UnderlyingPrice = r.UnderlyingPrice.v
	}
	if q.Underlying == "" && q.Symbol != "" {
		c, err := market.ParseSymbol(q.Symbol)
		if err != nil {
			return market.Quote{}, err
		}
		q.Underlying = c.Underlying
	}
	if r.Delta.ok || r.Gamma.ok || r.Theta.ok || r.Vega.ok {
		q.Greeks = &market.Greeks{Delta: r.Delta.v, Gamma: r.Gamma.v, Theta: r.Theta.v, Vega: r.Vega.v, Rho: r.Rho.v}
	}
	return q, nil
}

func rowOf(q market.Quote) optionRow {
	r := optionRow{
		Timestamp:       csvTime{q.Timestamp},
		Symbol:          q.Symbol,
		Underlying:      q.Underlying,
		UnderlyingPrice: some(q.UnderlyingPrice),
		Strike:          q.Strike,
		Expiry:          csvDate{q.Expiry},
		OptionType:      string(q.Type),
		Bid:             q.Bid,
		Ask:             q.Ask,
		Last:            q.Last,
		Volume:          q.Volume,
		OpenInterest:    q.OpenInterest,
		IV:              q.IV,
	}
	if g := q.Greeks; g != nil {
		r.Delta, r.Gamma, r.Theta, r.Vega, r.Rho = some(g.Delta), some(g.Gamma), some(g.Theta), some(g.Vega), some(g.Rho)
	}
	return r
}

// LoadCSV reads an options file, or every *.csv file in a directory, into
// a Memory provider. A directory may carry underlying.csv with columns
// timestamp, symbol, price.
func LoadCSV(path string, cal Calendar) (*Memory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}

	var files []string
	var prices string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("load csv: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			switch {
			case e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv"):
			case name == UnderlyingFile:
				prices = filepath.Join(path, name)
			default:
				files = append(files, filepath.Join(path, name))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load csv: no option files in %s", path)
	}

	mem := NewMemory(cal)
	for _, f := range files {
		if err := loadOptionFile(mem, f); err != nil {
			return nil, err
		}
	}
	if prices != "" {
		if err := loadUnderlyingFile(mem, prices); err != nil {
			return nil, err
		}
	}
	return mem, nil
}

func loadOptionFile(mem *Memory, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load csv: %w", err)
	}
	defer f.Close()

	var rows []*optionRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return fmt.Errorf("load csv %s: %w", filepath.Base(path), err)
	}

	quotes := make([]market.Quote, 0, len(rows))
	for i, r := range rows {
		q, err := r.quote()
		if err != nil {
			return fmt.Errorf("load csv %s row %d: %w", filepath.Base(path), i+2, err)
		}
		quotes = append(quotes, q)
	}
	if err := mem.AddQuotes(quotes...); err != nil {
		return fmt.Errorf("load csv %s: %w", filepath.Base(path), err)
	}
	return nil
}

func loadUnderlyingFile(mem *Memory, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load underlying: %w", err)
	}
	defer f.Close()

	var rows []*underlyingRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return fmt.Errorf("load underlying: %w", err)
	}
	for _, r := range rows {
		mem.SetUnderlyingPrice(strings.TrimSpace(r.Symbol), r.Timestamp.Time, r.Price)
	}
	return nil
}

// WriteQuotesCSV writes quotes in the options file format.
func WriteQuotesCSV(path string, quotes []market.Quote) error {
	rows := make([]*optionRow, len(quotes))
	for i, q := range quotes {
		r := rowOf(q)
		rows[i] = &r
	}
	return writeCSV(path, &rows)
}

// PricePoint is one underlying price observation.
type PricePoint struct {
	Time   time.Time
	Symbol string
	Price  float64
}

// WriteUnderlyingCSV writes prices in the underlying.csv format.
func WriteUnderlyingCSV(path string, points []PricePoint) error {
	rows := make([]*underlyingRow, len(points))
	for i, p := range points {
		rows[i] = &underlyingRow{Timestamp: csvTime{p.Time}, Symbol: p.Symbol, Price: p.Price}
	}
	return writeCSV(path, &rows)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return fmt.Errorf("write csv %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
