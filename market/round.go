package market

import "github.com/shopspring/decimal"

// Round rounds x half away from zero to places decimals using decimal
// arithmetic, so 2.675 rounds to 2.68.
func Round(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// Cents rounds a money amount to the cent.
func Cents(x float64) float64 { return Round(x, 2) }
