// SPDX-License-Identifier: GPL-3.0-only

// Package gain converts user brightness intent into a display gain bounded by
// the reported extended dynamic range headroom.
package gain

import "github.com/samber/lo"

const (
	// MinPercent and MaxPercent bound the user-facing intent.
	MinPercent = 0.0
	MaxPercent = 100.0

	// UnityGain is the gain that leaves the display untouched.
	UnityGain = 1.0
)

// FactorForPercent converts a percentage (0-100) to a gain factor in [1, cap].
// Percentages outside the valid range are clamped before conversion.
func FactorForPercent(percent, cap float64) float64 {
	if cap <= UnityGain {
		return UnityGain
	}
	percent = ClampPercent(percent)
	return UnityGain + (cap-UnityGain)*(percent/MaxPercent)
}

// PercentForFactor converts a gain factor to a percentage of the headroom
// between unity and cap. With no headroom the result is 0.
func PercentForFactor(factor, cap float64) float64 {
	if cap <= UnityGain {
		return MinPercent
	}
	return ClampPercent((factor - UnityGain) / (cap - UnityGain) * MaxPercent)
}

// ClampPercent ensures the percentage is within the valid range.
func ClampPercent(percent float64) float64 {
	return lo.Clamp(percent, MinPercent, MaxPercent)
}

// ClampFactor ensures the factor is within [1, cap].
func ClampFactor(factor, cap float64) float64 {
	return lo.Clamp(factor, UnityGain, max(cap, UnityGain))
}
