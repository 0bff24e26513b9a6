package services

import "github.com/shopspring/decimal"

// SplitFee rounds the platform fee to cents and lets earnings absorb the
// remainder, so fee + earnings == gross exactly.
func SplitFee(gross, rate decimal.Decimal) (fee, earnings decimal.Decimal) {
	fee = gross.Mul(rate).Round(2)
	earnings = gross.Sub(fee)
	return fee, earnings
}

// hasCents reports whether d has at most two fractional digits.
func hasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
