package catalog

import "math"

// Round2 rounds a price to two decimal places. Every proposed price the
// pipeline produces passes through here before it is surfaced or applied.
func Round2(price float64) float64 {
	return math.Round(price*100) / 100
}

// PricesEqual reports whether two prices agree within the dead-band eps.
func PricesEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
