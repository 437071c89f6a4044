package config_test

import (
	"math"
	"testing"
	"time"

	"github.com/shini4i/edr-brightness-daemon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := config.Defaults()
	assert.Equal(t, "normal", d.Profile)
	assert.True(t, d.AutoEnabled)
	assert.False(t, d.Enabled)
	assert.Equal(t, 50.0, d.UserPercent)
	assert.Equal(t, 2.0, d.SampleHz)
	assert.Equal(t, 8.0, d.Calibration.A)
	assert.Equal(t, 1.15, d.Calibration.P)
	assert.False(t, d.Guard.Enabled)
	assert.Equal(t, 0.9, d.Guard.Factor)
	assert.Equal(t, 0.98, d.Cap.SafetyMargin)
	assert.Equal(t, 1.70, d.Cap.Ceiling)
	assert.Equal(t, 250, d.Duck.DurationMs)
	assert.Equal(t, 1200.0, d.Blend.SunDxTrigger)
	assert.Equal(t, 500*time.Millisecond, d.SampleInterval())

	clamped := d
	clamped.Clamp()
	assert.Equal(t, d, clamped, "defaults are already in range")
}

func TestSettings_Clamp(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *config.Settings)
		check  func(t *testing.T, s config.Settings)
	}{
		{
			name:   "unknown profile falls back to normal",
			mutate: func(s *config.Settings) { s.Profile = "blinding" },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, "normal", s.Profile) },
		},
		{
			name:   "percent above range",
			mutate: func(s *config.Settings) { s.UserPercent = 140 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 100.0, s.UserPercent) },
		},
		{
			name:   "NaN percent resets to default",
			mutate: func(s *config.Settings) { s.UserPercent = math.NaN() },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 50.0, s.UserPercent) },
		},
		{
			name:   "sample rate below range",
			mutate: func(s *config.Settings) { s.SampleHz = 0.1 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 0.5, s.SampleHz) },
		},
		{
			name:   "sample rate above range",
			mutate: func(s *config.Settings) { s.SampleHz = 240 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 60.0, s.SampleHz) },
		},
		{
			name:   "non-positive calibration scale",
			mutate: func(s *config.Settings) { s.Calibration.A = -3 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 8.0, s.Calibration.A) },
		},
		{
			name:   "calibration exponent clamped",
			mutate: func(s *config.Settings) { s.Calibration.P = 3 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 1.8, s.Calibration.P) },
		},
		{
			name:   "dark point clamped to counts",
			mutate: func(s *config.Settings) { s.Calibration.XDark = 5000 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 2047.0, s.Calibration.XDark) },
		},
		{
			name:   "guard factor floor",
			mutate: func(s *config.Settings) { s.Guard.Factor = 0.1 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 0.5, s.Guard.Factor) },
		},
		{
			name:   "cap ceiling never exceeds the hard ceiling",
			mutate: func(s *config.Settings) { s.Cap.Ceiling = 4 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 1.70, s.Cap.Ceiling) },
		},
		{
			name:   "duck duration clamped",
			mutate: func(s *config.Settings) { s.Duck.DurationMs = 10 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 50, s.Duck.DurationMs) },
		},
		{
			name:   "missing duck duration uses default",
			mutate: func(s *config.Settings) { s.Duck.DurationMs = 0 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 250, s.Duck.DurationMs) },
		},
		{
			name:   "blend weight clamped",
			mutate: func(s *config.Settings) { s.Blend.MaxWeight = 2 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 1.0, s.Blend.MaxWeight) },
		},
		{
			name:   "non-positive exponent uses default",
			mutate: func(s *config.Settings) { s.Blend.Exponent = 0 },
			check:  func(t *testing.T, s config.Settings) { assert.Equal(t, 1.45, s.Blend.Exponent) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			tt.mutate(&s)
			s.Clamp()
			tt.check(t, s)
		})
	}
}

func TestSettings_SetProfile(t *testing.T) {
	s := config.Defaults()
	require.NoError(t, s.SetProfile("sensitive"))
	assert.Equal(t, "sensitive", s.AutoProfile().Name)

	assert.Error(t, s.SetProfile("blinding"))
	assert.Equal(t, "sensitive", s.Profile, "a rejected profile leaves the old one")
}

func TestSettings_Conversions(t *testing.T) {
	s := config.Defaults()
	s.SetGuard(true, 0.8)
	s.SetDuck(true, 30, 400*time.Millisecond)
	s.Blend.MaxWeight = 0.4

	capCfg := s.CapConfig()
	assert.True(t, capCfg.GuardEnabled)
	assert.Equal(t, 0.8, capCfg.EffectiveGuard())

	duck := s.DuckConfig()
	assert.Equal(t, 30.0, duck.Percent)
	assert.Equal(t, 400*time.Millisecond, duck.Duration)

	assert.Equal(t, 0.4, s.BlendConfig().MaxWeight)
	assert.Equal(t, s.Calibration.A, s.Calibrator().A)
}
