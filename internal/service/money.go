package service

import "github.com/shopspring/decimal"

// lineTotal is price*quantity in exact decimal arithmetic
func lineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

// roundMoney converts a decimal sum to a float rounded to cents
func roundMoney(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// sameAmount compares two money values at cent precision
func sameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
