package order

import "github.com/shopspring/decimal"

// Cent is the smallest currency unit an order total may carry
var Cent = decimal.New(1, -2)

// TruncateToCent floors d to two decimal places, toward negative infinity.
// TruncateToCent(2.999) is 2.99 and TruncateToCent(-0.001) is -0.01.
// Used for recycling fees and aggregated tax.
func TruncateToCent(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// RoundToCent rounds d to the nearest cent, halves away from zero.
// RoundToCent(2.999) is 3.00. Used for discounts and totals.
func RoundToCent(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorTotal applies the minimum order total: anything below one cent is
// raised to one cent, everything else is rounded to the cent.
func FloorTotal(total decimal.Decimal) decimal.Decimal {
	if total.LessThan(Cent) {
		return Cent
	}
	return RoundToCent(total)
}
