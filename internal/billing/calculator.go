// Package billing computes prepaid call allowances and rates completed calls.
package billing

import "math"

// AllowanceKind classifies what a prepaid balance permits.
type AllowanceKind int

const (
	// Insufficient means the call must not be connected.
	Insufficient AllowanceKind = iota
	// Unlimited means the balance imposes no duration limit.
	Unlimited
	// Limited means the call may run for Allowance.Seconds at most.
	Limited
)

// Allowance is the outcome of a prepaid allowance computation.
type Allowance struct {
	Kind    AllowanceKind
	Seconds int // meaningful only when Kind == Limited
}

// Rate bundles the pricing parameters of one call. Route-level overrides
// and switch-supplied variables are folded in by the caller before the
// allowance is computed.
type Rate struct {
	PerMinute        float64
	SetupFee         float64
	IncrementSeconds int
}

// normalizedIncrement guards against missing or nonsensical increments.
func normalizedIncrement(inc int) int {
	if inc <= 0 {
		return 60
	}
	return inc
}

// Allowance computes the maximum call duration a prepaid balance permits.
//
// A non-positive balance is always insufficient. A zero per-minute rate is
// unlimited unless the setup fee alone exceeds the balance. Otherwise the
// balance after the setup fee is divided into whole billing increments; at
// least one increment must be affordable.
func (r Rate) Allowance(balance float64) Allowance {
	if balance <= 0 {
		return Allowance{Kind: Insufficient}
	}

	if r.PerMinute == 0 {
		if r.SetupFee > balance {
			return Allowance{Kind: Insufficient}
		}
		return Allowance{Kind: Unlimited}
	}

	increment := normalizedIncrement(r.IncrementSeconds)
	perUnitCharge := r.PerMinute * float64(increment) / 60
	spendable := balance - r.SetupFee

	if spendable < perUnitCharge {
		return Allowance{Kind: Insufficient}
	}

	units := int(math.Floor(spendable / perUnitCharge))
	if units < 1 {
		units = 1
	}
	return Allowance{Kind: Limited, Seconds: units * increment}
}
