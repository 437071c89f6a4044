// SPDX-License-Identifier: GPL-3.0-only

// Package config holds the daemon's persisted settings and the viper-backed
// store that loads, saves and watches them.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/gain"
)

// Clamped ranges of the numeric settings.
const (
	MinSampleHz = 0.5
	MaxSampleHz = 60.0

	MinSafetyMargin = 0.5
	MaxSafetyMargin = 1.0

	MinDuckDuration = 50 * time.Millisecond
	MaxDuckDuration = 2000 * time.Millisecond

	DefaultUserPercent = 50.0
	DefaultSampleHz    = 2.0
)

// CalibrationSettings are the power-law calibration constants.
type CalibrationSettings struct {
	A     float64 `mapstructure:"a"`
	P     float64 `mapstructure:"p"`
	XDark float64 `mapstructure:"x_dark"`
}

// GuardSettings control the optional cap derating.
type GuardSettings struct {
	Enabled bool    `mapstructure:"enabled"`
	Factor  float64 `mapstructure:"factor"`
}

// CapSettings tune the cap model.
type CapSettings struct {
	SafetyMargin float64 `mapstructure:"safety_margin"`
	Ceiling      float64 `mapstructure:"ceiling"`
}

// DuckSettings tune the HDR duck.
type DuckSettings struct {
	Enabled    bool    `mapstructure:"enabled"`
	Percent    float64 `mapstructure:"percent"`
	DurationMs int     `mapstructure:"duration_ms"`
}

// BlendSettings tune the relative illuminance blend.
type BlendSettings struct {
	SunDxTrigger float64 `mapstructure:"sun_dx_trigger"`
	MaxWeight    float64 `mapstructure:"max_weight"`
	Exponent     float64 `mapstructure:"exponent"`
}

// Settings is the full persisted state. Use the setters or Clamp to keep
// every value inside its documented range.
type Settings struct {
	Profile     string              `mapstructure:"profile"`
	AutoEnabled bool                `mapstructure:"auto_enabled"`
	Enabled     bool                `mapstructure:"enabled"`
	UserPercent float64             `mapstructure:"user_percent"`
	SampleHz    float64             `mapstructure:"sample_hz"`
	Calibration CalibrationSettings `mapstructure:"calibration"`
	Guard       GuardSettings       `mapstructure:"guard"`
	Cap         CapSettings         `mapstructure:"cap"`
	Duck        DuckSettings        `mapstructure:"duck"`
	Blend       BlendSettings       `mapstructure:"blend"`
}

// Defaults returns the shipped settings.
func Defaults() Settings {
	blend := als.DefaultBlendConfig()
	return Settings{
		Profile:     auto.ProfileNormal,
		AutoEnabled: true,
		Enabled:     false,
		UserPercent: DefaultUserPercent,
		SampleHz:    DefaultSampleHz,
		Calibration: CalibrationSettings{A: als.DefaultA, P: als.DefaultP, XDark: als.DefaultXDark},
		Guard:       GuardSettings{Enabled: false, Factor: gain.DefaultGuardFactor},
		Cap:         CapSettings{SafetyMargin: gain.DefaultSafetyMargin, Ceiling: gain.HardCeiling},
		Duck:        DuckSettings{Enabled: true, Percent: 0, DurationMs: int(gain.DefaultDuckDuration / time.Millisecond)},
		Blend: BlendSettings{
			SunDxTrigger: blend.SunDxTrigger,
			MaxWeight:    blend.MaxWeight,
			Exponent:     blend.Exponent,
		},
	}
}

// Clamp brings every value into range, replacing unusable values with
// their defaults.
func (s *Settings) Clamp() {
	d := Defaults()

	if _, err := auto.LookupProfile(s.Profile); err != nil {
		s.Profile = d.Profile
	}
	s.SetUserPercent(s.UserPercent)
	s.SetSampleHz(s.SampleHz)
	s.SetCalibration(s.Calibration)
	s.SetGuard(s.Guard.Enabled, s.Guard.Factor)

	s.Cap.SafetyMargin = clampOr(s.Cap.SafetyMargin, MinSafetyMargin, MaxSafetyMargin, d.Cap.SafetyMargin)
	s.Cap.Ceiling = clampOr(s.Cap.Ceiling, gain.UnityGain, gain.HardCeiling, d.Cap.Ceiling)

	s.SetDuck(s.Duck.Enabled, s.Duck.Percent, time.Duration(s.Duck.DurationMs)*time.Millisecond)

	if !(s.Blend.SunDxTrigger > 0) || math.IsInf(s.Blend.SunDxTrigger, 0) {
		s.Blend.SunDxTrigger = d.Blend.SunDxTrigger
	}
	s.Blend.MaxWeight = clampOr(s.Blend.MaxWeight, 0, 1, d.Blend.MaxWeight)
	if !(s.Blend.Exponent > 0) || math.IsInf(s.Blend.Exponent, 0) {
		s.Blend.Exponent = d.Blend.Exponent
	}
}

// SetProfile selects a named auto profile.
func (s *Settings) SetProfile(name string) error {
	if _, err := auto.LookupProfile(name); err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}
	s.Profile = name
	return nil
}

// SetUserPercent stores the brightness intent clamped to [0, 100].
func (s *Settings) SetUserPercent(p float64) {
	s.UserPercent = clampOr(p, gain.MinPercent, gain.MaxPercent, DefaultUserPercent)
}

// SetSampleHz stores the sampling rate clamped to [0.5, 60].
func (s *Settings) SetSampleHz(hz float64) {
	s.SampleHz = clampOr(hz, MinSampleHz, MaxSampleHz, DefaultSampleHz)
}

// SetCalibration stores calibration constants, rejecting a non-positive
// scale.
func (s *Settings) SetCalibration(c CalibrationSettings) {
	if !(c.A > 0) || math.IsInf(c.A, 0) {
		c.A = als.DefaultA
	}
	c.P = clampOr(c.P, als.MinExponent, als.MaxExponent, als.DefaultP)
	c.XDark = clampOr(c.XDark, 0, als.MaxCount, als.DefaultXDark)
	s.Calibration = c
}

// SetGuard stores the guard state with the factor clamped to [0.5, 1].
func (s *Settings) SetGuard(enabled bool, factor float64) {
	s.Guard.Enabled = enabled
	s.Guard.Factor = clampOr(factor, gain.MinGuardFactor, 1.0, gain.DefaultGuardFactor)
}

// SetDuck stores the duck tuning.
func (s *Settings) SetDuck(enabled bool, percent float64, duration time.Duration) {
	if duration <= 0 {
		duration = gain.DefaultDuckDuration
	}
	s.Duck.Enabled = enabled
	s.Duck.Percent = clampOr(percent, gain.MinPercent, gain.MaxPercent, 0)
	s.Duck.DurationMs = int(lo.Clamp(duration, MinDuckDuration, MaxDuckDuration) / time.Millisecond)
}

// AutoProfile returns the selected profile.
func (s Settings) AutoProfile() auto.Profile {
	p, err := auto.LookupProfile(s.Profile)
	if err != nil {
		return auto.DefaultProfile()
	}
	return p
}

// Calibrator returns the calibration as an als.Calibrator.
func (s Settings) Calibrator() als.Calibrator {
	return als.Calibrator{A: s.Calibration.A, P: s.Calibration.P, XDark: s.Calibration.XDark}
}

// BlendConfig returns the blend tuning over the default bounds.
func (s Settings) BlendConfig() als.BlendConfig {
	b := als.DefaultBlendConfig()
	b.SunDxTrigger = s.Blend.SunDxTrigger
	b.MaxWeight = s.Blend.MaxWeight
	b.Exponent = s.Blend.Exponent
	return b
}

// CapConfig returns the cap model tuning.
func (s Settings) CapConfig() gain.CapConfig {
	return gain.CapConfig{
		SafetyMargin: s.Cap.SafetyMargin,
		Ceiling:      s.Cap.Ceiling,
		GuardEnabled: s.Guard.Enabled,
		GuardFactor:  s.Guard.Factor,
	}
}

// DuckConfig returns the duck tuning.
func (s Settings) DuckConfig() gain.DuckConfig {
	return gain.DuckConfig{
		Enabled:  s.Duck.Enabled,
		Percent:  s.Duck.Percent,
		Duration: time.Duration(s.Duck.DurationMs) * time.Millisecond,
	}
}

// SampleInterval is the period of the sampling task.
func (s Settings) SampleInterval() time.Duration {
	hz := clampOr(s.SampleHz, MinSampleHz, MaxSampleHz, DefaultSampleHz)
	return time.Duration(float64(time.Second) / hz)
}

func clampOr(v, minV, maxV, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return lo.Clamp(v, minV, maxV)
}
