package util

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PercentChange returns (to-from)/from*100 rounded to two decimals. from must be non-zero.
func PercentChange(from, to float64) float64 {
	f := decimal.NewFromFloat(from)
	return decimal.NewFromFloat(to).Sub(f).Div(f).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// Ratio returns num/den*100 rounded to two decimals, or 0 when den is zero.
func Ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
