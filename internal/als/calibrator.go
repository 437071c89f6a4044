// SPDX-License-Identifier: GPL-3.0-only

package als

import (
	"math"

	"github.com/samber/lo"
)

const (
	// MinExponent and MaxExponent bound the fitted power-law exponent.
	MinExponent = 0.8
	MaxExponent = 1.8

	// DefaultA, DefaultP and DefaultXDark are the factory fit.
	DefaultA     = 8.0
	DefaultP     = 1.15
	DefaultXDark = 0.0
)

// Calibrator maps a smoothed sensor count to lux with lux = A * (x - XDark)^P.
type Calibrator struct {
	A     float64
	P     float64
	XDark float64
}

// Anchor is one calibration point: a count above dark and the lux measured there.
type Anchor struct {
	DX  float64
	Lux float64
}

// DefaultCalibrator returns the factory calibration.
func DefaultCalibrator() Calibrator {
	return Calibrator{A: DefaultA, P: DefaultP, XDark: DefaultXDark}
}

// EstimateLux returns the calibrated illuminance for the smoothed count x.
func (c Calibrator) EstimateLux(x float64) float64 {
	dx := math.Max(0, x-c.XDark)
	if dx == 0 {
		return 0
	}
	return c.A * math.Pow(dx, c.P)
}

// DX returns the count above the dark offset, floored at zero.
func (c Calibrator) DX(x float64) float64 {
	return math.Max(0, x-c.XDark)
}

// FitTwoAnchors solves A and P from two anchors. It returns false and leaves
// the calibrator unchanged when either anchor is non-positive or the pair is
// degenerate.
func (c *Calibrator) FitTwoAnchors(a, b Anchor) bool {
	if a.DX <= 0 || a.Lux <= 0 || b.DX <= 0 || b.Lux <= 0 {
		return false
	}
	if a.DX == b.DX {
		return false
	}

	p := math.Log(b.Lux/a.Lux) / math.Log(b.DX/a.DX)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return false
	}
	p = lo.Clamp(p, MinExponent, MaxExponent)

	scale := a.Lux / math.Pow(a.DX, p)
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return false
	}

	c.A = scale
	c.P = p
	return true
}

// CaptureDark sets the dark offset to the given smoothed count.
func (c *Calibrator) CaptureDark(x float64) {
	c.XDark = lo.Clamp(x, 0, MaxCount)
}

// Valid reports whether the calibration constants are usable.
func (c Calibrator) Valid() bool {
	return c.A > 0 && c.P >= MinExponent && c.P <= MaxExponent && c.XDark >= 0 && c.XDark <= MaxCount
}
