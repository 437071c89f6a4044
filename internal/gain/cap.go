// SPDX-License-Identifier: GPL-3.0-only

package gain

import (
	"math"

	"github.com/samber/lo"
)

const (
	// DefaultSafetyMargin derates the reported headroom.
	DefaultSafetyMargin = 0.98

	// HardCeiling is the largest gain ever applied.
	HardCeiling = 1.70

	// MinGuardFactor is the strongest derating the guard may apply.
	MinGuardFactor = 0.5

	// DefaultGuardFactor is the guard derating when enabled.
	DefaultGuardFactor = 0.9
)

// Headroom is one display's reported extended range headroom.
type Headroom struct {
	DisplayID string
	// Potential is the largest headroom the display can offer.
	Potential float64
	// Reference is the headroom available at the current reference white.
	Reference float64
	// Target marks built-in displays the gain is applied to.
	Target bool
}

// CapConfig holds the cap model's tuning.
type CapConfig struct {
	SafetyMargin float64
	Ceiling      float64
	GuardEnabled bool
	GuardFactor  float64
}

// DefaultCapConfig returns the shipped cap tuning with the guard disabled.
func DefaultCapConfig() CapConfig {
	return CapConfig{
		SafetyMargin: DefaultSafetyMargin,
		Ceiling:      HardCeiling,
		GuardFactor:  DefaultGuardFactor,
	}
}

// EffectiveGuard returns the derating factor actually applied.
func (c CapConfig) EffectiveGuard() float64 {
	if !c.GuardEnabled {
		return 1.0
	}
	return lo.Clamp(c.GuardFactor, MinGuardFactor, 1.0)
}

// CapDetails is the result of one cap computation.
type CapDetails struct {
	Cap         float64
	RawCap      float64
	PreClamped  float64
	BestRatio   float64
	BestRef     float64
	BestDisplay string
	GuardFactor float64
	SawEDR      bool
}

// ComputeCap derives the maximum safe gain from the target displays'
// reported headroom. anyEDR reports whether any display, target or not,
// supports extended range.
func ComputeCap(readings []Headroom, anyEDR bool, cfg CapConfig) CapDetails {
	guard := cfg.EffectiveGuard()
	ceiling := lo.Clamp(cfg.Ceiling, UnityGain, HardCeiling)
	if cfg.Ceiling <= 0 {
		ceiling = HardCeiling
	}
	margin := lo.Clamp(cfg.SafetyMargin, 0, 1)

	details := CapDetails{
		Cap:         UnityGain,
		RawCap:      UnityGain,
		PreClamped:  UnityGain,
		BestRatio:   UnityGain,
		GuardFactor: guard,
		SawEDR: anyEDR || lo.SomeBy(readings, func(h Headroom) bool {
			return h.Potential > UnityGain
		}),
	}

	targets := lo.Filter(readings, func(h Headroom, _ int) bool {
		return h.Target && !math.IsNaN(h.Potential) && !math.IsInf(h.Potential, 0)
	})
	if len(targets) == 0 {
		details.Cap = math.Max(UnityGain, UnityGain*guard)
		return details
	}

	best := lo.MaxBy(targets, func(a, b Headroom) bool {
		return a.Potential > b.Potential
	})
	details.BestRatio = best.Potential
	details.BestRef = best.Reference
	details.BestDisplay = best.DisplayID

	if best.Potential <= UnityGain {
		details.Cap = math.Max(UnityGain, UnityGain*guard)
		return details
	}

	details.RawCap = UnityGain + (best.Potential-UnityGain)*margin
	details.PreClamped = math.Min(details.RawCap, ceiling)
	details.Cap = math.Max(UnityGain, details.PreClamped*guard)
	return details
}
