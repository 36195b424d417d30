package billing

import "math"

// RatedCall is the cost breakdown of a completed call.
type RatedCall struct {
	// RatedSeconds is the billed duration: elapsed seconds rounded up to
	// the next whole billing increment.
	RatedSeconds int
	// Subtotal is setup fee plus per-minute charges, before tax.
	Subtotal float64
	// Total is the subtotal with the tax-percent surcharge applied.
	Total float64
}

// RateCall rates a completed call: elapsed seconds are rounded up to the
// billing increment, charged at the per-minute rate on top of the setup
// fee, then the tax percentage is applied multiplicatively to the subtotal.
// Zero elapsed seconds still incur the setup fee when one is configured.
func RateCall(elapsedSeconds int, r Rate, taxPercent float64) RatedCall {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	increment := normalizedIncrement(r.IncrementSeconds)

	rated := 0
	if elapsedSeconds > 0 {
		units := int(math.Ceil(float64(elapsedSeconds) / float64(increment)))
		rated = units * increment
	}

	subtotal := r.SetupFee + r.PerMinute*float64(rated)/60
	total := subtotal
	if taxPercent > 0 {
		total = subtotal * (1 + taxPercent/100)
	}

	return RatedCall{
		RatedSeconds: rated,
		Subtotal:     subtotal,
		Total:        total,
	}
}
