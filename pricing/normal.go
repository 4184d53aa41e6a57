package pricing

import (
	"fmt"
	"strings"

	gaussian "github.com/chobie/go-gaussian"
	"gonum.org/v1/gonum/stat/distuv"
)

// Backend names accepted by New.
const (
	BackendGonum    = "gonum"
	BackendGaussian = "gaussian"
)

// normal is the standard normal distribution the closed form is built on.
type normal interface {
	CDF(x float64) float64
	PDF(x float64) float64
}

type gonumNormal struct{ d distuv.Normal }

func (n gonumNormal) CDF(x float64) float64 { return n.d.CDF(x) }
func (n gonumNormal) PDF(x float64) float64 { return n.d.Prob(x) }

type gaussianNormal struct{ g *gaussian.Gaussian }

func (n gaussianNormal) CDF(x float64) float64 { return n.g.Cdf(x) }
func (n gaussianNormal) PDF(x float64) float64 { return n.g.Pdf(x) }

func newNormal(backend string) (normal, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendGonum:
		return gonumNormal{d: distuv.UnitNormal}, nil
	case BackendGaussian:
		return gaussianNormal{g: gaussian.NewGaussian(0, 1)}, nil
	}
	return nil, fmt.Errorf("unknown pricing backend %q (want %s or %s)", backend, BackendGonum, BackendGaussian)
}
