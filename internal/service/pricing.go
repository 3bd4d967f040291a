package service

import "math"

// Pricing constants. The markup and surcharge apply to every variant;
// historic order items keep the price computed at creation time even if
// these change.
const (
	markupRate     = 1.15
	fixedSurcharge = 10000
)

// FinalPrice derives the externally visible price from a supplier base
// price, in integer minor units. This is the only place the formula
// lives: catalog display and order-item creation both call it, so the
// displayed price and the charged price cannot diverge.
func FinalPrice(basePrice int64) int64 {
	return int64(math.Round(float64(basePrice)*markupRate)) + fixedSurcharge
}
