// README: Common money helpers used across modules.
package types

import "github.com/shopspring/decimal"

// Cents is the precision charges are presented with.
const Cents int32 = 2

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(Cents)
}

// MoneyFloat converts a rounded amount for JSON payloads.
func MoneyFloat(d decimal.Decimal) float64 {
	return RoundMoney(d).InexactFloat64()
}
