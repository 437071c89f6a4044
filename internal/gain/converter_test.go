package gain_test

import (
	"testing"

	"github.com/shini4i/edr-brightness-daemon/internal/gain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorForPercent(t *testing.T) {
	tests := []struct {
		name     string
		percent  float64
		cap      float64
		expected float64
	}{
		{
			name:     "0% is unity gain",
			percent:  0,
			cap:      1.5,
			expected: 1.0,
		},
		{
			name:     "100% is the cap",
			percent:  100,
			cap:      1.5,
			expected: 1.5,
		},
		{
			name:     "50% is halfway into the headroom",
			percent:  50,
			cap:      1.6,
			expected: 1.3,
		},
		{
			name:     "80% of a 1.2 cap",
			percent:  80,
			cap:      1.2,
			expected: 1.16,
		},
		{
			name:     "percent above range is clamped",
			percent:  150,
			cap:      1.5,
			expected: 1.5,
		},
		{
			name:     "negative percent is clamped",
			percent:  -10,
			cap:      1.5,
			expected: 1.0,
		},
		{
			name:     "no headroom is always unity",
			percent:  100,
			cap:      1.0,
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, gain.FactorForPercent(tt.percent, tt.cap), 1e-12)
		})
	}
}

func TestPercentForFactor(t *testing.T) {
	tests := []struct {
		name     string
		factor   float64
		cap      float64
		expected float64
	}{
		{
			name:     "unity is 0%",
			factor:   1.0,
			cap:      1.5,
			expected: 0,
		},
		{
			name:     "cap is 100%",
			factor:   1.5,
			cap:      1.5,
			expected: 100,
		},
		{
			name:     "factor above cap is clamped",
			factor:   2.0,
			cap:      1.5,
			expected: 100,
		},
		{
			name:     "factor below unity is clamped",
			factor:   0.5,
			cap:      1.5,
			expected: 0,
		},
		{
			name:     "no headroom is 0%",
			factor:   1.2,
			cap:      1.0,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, gain.PercentForFactor(tt.factor, tt.cap), 1e-9)
		})
	}
}

func TestClampFactor(t *testing.T) {
	assert.Equal(t, 1.0, gain.ClampFactor(0.2, 1.5))
	assert.Equal(t, 1.5, gain.ClampFactor(1.9, 1.5))
	assert.Equal(t, 1.25, gain.ClampFactor(1.25, 1.5))
	assert.Equal(t, 1.0, gain.ClampFactor(1.25, 0.8), "a cap below unity still allows unity")
}

func TestRoundTrip(t *testing.T) {
	for _, cap := range []float64{1.01, 1.2, 1.5, 1.7} {
		for percent := 0.0; percent <= 100; percent += 0.5 {
			factor := gain.FactorForPercent(percent, cap)
			result := gain.PercentForFactor(factor, cap)
			assert.InDelta(t, percent, result, 0.01, "round-trip failed for %.1f%% at cap %.2f", percent, cap)
		}
	}
}

func TestConstants(t *testing.T) {
	require.Equal(t, 0.0, gain.MinPercent)
	require.Equal(t, 100.0, gain.MaxPercent)
	require.Equal(t, 1.0, gain.UnityGain)
}
