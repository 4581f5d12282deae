// README: Money helpers shared by fare, payment, earning and webhook modules.
package types

import "github.com/shopspring/decimal"

// Currency is the only currency the gateway account settles in.
const Currency = "INR"

// Round2 rounds an amount to two decimal places (paise precision).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromMinor converts a gateway amount expressed in the smallest currency unit.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2).Round(2)
}

// ToMinor converts an amount to the smallest currency unit for gateway calls.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
