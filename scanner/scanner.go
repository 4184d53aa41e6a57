// Package scanner ranks the contracts of an option chain by volatility,
// activity, moneyness and time decay.
package scanner

import (
	"math"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"gonum.org/v1/gonum/stat"

	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/sim"
)

type Kind string

const (
	HighIV        Kind = "high_iv"
	UnusualVolume Kind = "unusual_volume"
	NearMoney     Kind = "near_money"
	HighTheta     Kind = "high_theta"
)

// Kinds lists every scan in display order.
var Kinds = []Kind{HighIV, UnusualVolume, NearMoney, HighTheta}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", market.Errorf(market.KindInvalidInput, "unknown scan %q (use high_iv, unusual_volume, near_money or high_theta)", s)
}

// Result is a matching contract with the score it was ranked by: the IV
// percentile rank, the volume/open interest ratio, the distance from the
// money in percent or the absolute theta.
type Result struct {
	sim.ChainRow `structs:",flatten"`
	Scan         Kind    `json:"scan" structs:"scan"`
	Score        float64 `json:"score" structs:"score"`
}

func (r Result) Record() map[string]any {
	m := structs.Map(r)
	m["score"] = market.Round(r.Score, 4)
	return m
}

// Options holds the thresholds for Run. Zero values take the defaults.
type Options struct {
	Percentile    float64 `json:"percentile"`
	VolumeOIRatio float64 `json:"volume_oi_ratio"`
	RangePct      float64 `json:"range_pct"`
	MinTheta      float64 `json:"min_theta"`
	Limit         int     `json:"limit"`
}

const (
	DefaultPercentile    = 50.0
	DefaultVolumeOIRatio = 2.0
	DefaultRangePct      = 5.0
)

// Run applies the scan k to the chain and truncates to opts.Limit.
func Run(k Kind, ch sim.Chain, opts Options) ([]Result, error) {
	var out []Result
	var err error
	switch k {
	case HighIV:
		p := opts.Percentile
		if p == 0 {
			p = DefaultPercentile
		}
		out, err = ScanHighIV(ch.Rows, p)
	case UnusualVolume:
		r := opts.VolumeOIRatio
		if r == 0 {
			r = DefaultVolumeOIRatio
		}
		out = ScanUnusualVolume(ch.Rows, r)
	case NearMoney:
		r := opts.RangePct
		if r == 0 {
			r = DefaultRangePct
		}
		out, err = ScanNearMoney(ch.Rows, ch.UnderlyingPrice, r)
	case HighTheta:
		out = ScanHighTheta(ch.Rows, opts.MinTheta)
	default:
		return nil, market.Errorf(market.KindInvalidInput, "unknown scan %q", k)
	}
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ScanHighIV keeps bid contracts whose IV is at or above the given
// percentile (0-100) of the chain, highest IV first.
func ScanHighIV(rows []sim.ChainRow, percentile float64) ([]Result, error) {
	if percentile < 0 || percentile > 100 {
		return nil, market.Errorf(market.KindInvalidInput, "percentile %v must be within 0-100", percentile)
	}
	var ivs []float64
	for _, r := range rows {
		if r.IV > 0 {
			ivs = append(ivs, r.IV)
		}
	}
	if len(ivs) == 0 {
		return nil, nil
	}
	sort.Float64s(ivs)
	threshold := stat.Quantile(percentile/100, stat.Empirical, ivs, nil)

	var out []Result
	for _, r := range rows {
		if r.IV >= threshold && r.IV > 0 && r.Bid > 0 {
			below := sort.SearchFloat64s(ivs, r.IV)
			out = append(out, Result{ChainRow: r, Scan: HighIV, Score: 100 * float64(below) / float64(len(ivs))})
		}
	}
	sortBy(out, func(r Result) float64 { return -r.IV })
	return out, nil
}

// ScanUnusualVolume keeps contracts trading at least ratio times their
// open interest, most active first.
func ScanUnusualVolume(rows []sim.ChainRow, ratio float64) []Result {
	var out []Result
	for _, r := range rows {
		if r.Volume <= 0 || r.OpenInterest <= 0 {
			continue
		}
		if x := float64(r.Volume) / float64(r.OpenInterest); x >= ratio {
			out = append(out, Result{ChainRow: r, Scan: UnusualVolume, Score: x})
		}
	}
	sortBy(out, func(r Result) float64 { return -r.Score })
	return out
}

// ScanNearMoney keeps bid contracts struck within rangePct percent of
// spot, closest first.
func ScanNearMoney(rows []sim.ChainRow, spot, rangePct float64) ([]Result, error) {
	if !(spot > 0) {
		return nil, market.Errorf(market.KindInvalidInput, "underlying price unavailable")
	}
	lower := spot * (1 - rangePct/100)
	upper := spot * (1 + rangePct/100)

	var out []Result
	for _, r := range rows {
		if r.Strike >= lower && r.Strike <= upper && r.Bid > 0 {
			d := math.Abs(r.Strike-spot) / spot * 100
			out = append(out, Result{ChainRow: r, Scan: NearMoney, Score: d})
		}
	}
	sortBy(out, func(r Result) float64 { return r.Score })
	return out, nil
}

// ScanHighTheta keeps bid contracts decaying at least minTheta per day.
// A non-positive minTheta uses the median absolute theta of the chain.
func ScanHighTheta(rows []sim.ChainRow, minTheta float64) []Result {
	var thetas []float64
	for _, r := range rows {
		if r.Greeks.Theta != 0 {
			thetas = append(thetas, math.Abs(r.Greeks.Theta))
		}
	}
	if len(thetas) == 0 {
		return nil
	}
	if minTheta <= 0 {
		sort.Float64s(thetas)
		minTheta = stat.Quantile(0.5, stat.Empirical, thetas, nil)
	}

	var out []Result
	for _, r := range rows {
		if a := math.Abs(r.Greeks.Theta); a >= minTheta && r.Bid > 0 {
			out = append(out, Result{ChainRow: r, Scan: HighTheta, Score: a})
		}
	}
	sortBy(out, func(r Result) float64 { return -r.Score })
	return out
}

// sortBy orders results by key, keeping chain order for ties.
func sortBy(rs []Result, key func(Result) float64) {
	sort.SliceStable(rs, func(i, j int) bool { return key(rs[i]) < key(rs[j]) })
}
