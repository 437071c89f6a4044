// SPDX-License-Identifier: GPL-3.0-only

package als

import (
	"math"
	"time"

	"github.com/samber/lo"
)

const (
	// DecayFactor is applied to the rolling maximum once per DecayInterval.
	DecayFactor = 0.995

	// DecayInterval is how often the rolling maximum decays.
	DecayInterval = 30 * time.Second

	// MaxLux is the hard ceiling on any published illuminance.
	MaxLux = 120000.0
)

// BlendConfig holds the calibration constants of the relative illuminance
// model and the confidence gate that admits it into the estimate.
type BlendConfig struct {
	// SunDxTrigger is the rolling maximum (counts above dark) at which the
	// relative model starts to earn confidence.
	SunDxTrigger float64
	// MaxWeight caps the relative model's share of the blended estimate.
	MaxWeight float64
	// Exponent shapes the relative curve.
	Exponent float64
	// MinLux and MaxLux are the relative model's output range.
	MinLux float64
	MaxLux float64
	// WarmUp is how long the tracker must have observed samples before
	// the relative model may contribute.
	WarmUp time.Duration
}

// DefaultBlendConfig returns the shipped blend constants.
func DefaultBlendConfig() BlendConfig {
	return BlendConfig{
		SunDxTrigger: 1200,
		MaxWeight:    0.25,
		Exponent:     1.45,
		MinLux:       50,
		MaxLux:       100000,
		WarmUp:       2 * time.Second,
	}
}

// RollingMax tracks the largest observed excursion above dark with a slow
// multiplicative decay. Between decay events MaxDx never decreases.
type RollingMax struct {
	maxDx     float64
	lastDecay time.Time
	started   time.Time
	saturated bool
}

// Observe folds dx into the tracker, applying any decay steps due since the
// last decay.
func (r *RollingMax) Observe(dx float64, now time.Time) {
	if r.started.IsZero() {
		r.started = now
		r.lastDecay = now
	}

	if elapsed := now.Sub(r.lastDecay); elapsed >= DecayInterval {
		steps := int(elapsed / DecayInterval)
		r.maxDx *= math.Pow(DecayFactor, float64(steps))
		r.lastDecay = r.lastDecay.Add(time.Duration(steps) * DecayInterval)
	}

	if dx > r.maxDx {
		r.maxDx = dx
	}
}

// MarkSaturated records a hard saturation event, which opens the confidence
// gate regardless of the observed maximum.
func (r *RollingMax) MarkSaturated() {
	r.saturated = true
}

// MaxDx returns the current rolling maximum.
func (r *RollingMax) MaxDx() float64 {
	return r.maxDx
}

// SawSaturation reports whether a hard saturation event has been recorded.
func (r *RollingMax) SawSaturation() bool {
	return r.saturated
}

// Reset clears all tracked state.
func (r *RollingMax) Reset() {
	*r = RollingMax{}
}

// Confidence returns how much the relative model may be trusted, in [0, 1].
func (r *RollingMax) Confidence(now time.Time, cfg BlendConfig) float64 {
	if r.started.IsZero() || now.Sub(r.started) < cfg.WarmUp {
		return 0
	}
	if !r.saturated && r.maxDx < cfg.SunDxTrigger {
		return 0
	}
	span := MaxCount - cfg.SunDxTrigger
	if span <= 0 {
		return 1
	}
	return lo.Clamp((r.maxDx-cfg.SunDxTrigger)/span, 0, 1)
}

// RelativeLux estimates illuminance from dx relative to the rolling maximum.
func (r *RollingMax) RelativeLux(dx float64, cfg BlendConfig) float64 {
	if r.maxDx <= 0 {
		return cfg.MinLux
	}
	ratio := lo.Clamp(dx/r.maxDx, 0, 1)
	return cfg.MinLux + (cfg.MaxLux-cfg.MinLux)*math.Pow(ratio, cfg.Exponent)
}

// Blend combines the calibrated estimate with the relative model. It returns
// the blended lux, the relative estimate and the weight given to it.
func (r *RollingMax) Blend(lfit, dx float64, now time.Time, cfg BlendConfig) (lux, lrel, weight float64) {
	lrel = r.RelativeLux(dx, cfg)
	weight = cfg.MaxWeight * r.Confidence(now, cfg)
	lux = (1-weight)*lfit + weight*lrel
	return lo.Clamp(lux, 0, MaxLux), lrel, weight
}
