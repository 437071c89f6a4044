package als_test

import (
	"math"
	"testing"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrator_EstimateLux(t *testing.T) {
	c := als.Calibrator{A: 2, P: 1.5, XDark: 10}

	assert.Equal(t, 0.0, c.EstimateLux(10), "dark offset maps to zero lux")
	assert.Equal(t, 0.0, c.EstimateLux(3), "below dark is floored")
	assert.InDelta(t, 2*math.Pow(90, 1.5), c.EstimateLux(100), 1e-9)
}

func TestCalibrator_DefaultIsValid(t *testing.T) {
	c := als.DefaultCalibrator()
	assert.True(t, c.Valid())
	assert.Equal(t, als.DefaultA, c.A)
	assert.Equal(t, als.DefaultP, c.P)
}

func TestCalibrator_FitTwoAnchors(t *testing.T) {
	c := als.DefaultCalibrator()
	a := als.Anchor{DX: 100, Lux: 1000}
	b := als.Anchor{DX: 1000, Lux: 20000}

	require.True(t, c.FitTwoAnchors(a, b))
	assert.InDelta(t, math.Log(20)/math.Log(10), c.P, 1e-12)
	assert.InEpsilon(t, 1000, c.EstimateLux(100), 1e-9)
	assert.InEpsilon(t, 20000, c.EstimateLux(1000), 1e-9)
}

func TestCalibrator_FitTwoAnchors_ClampsExponent(t *testing.T) {
	tests := []struct {
		name     string
		a, b     als.Anchor
		expected float64
	}{
		{
			name:     "steep pair clamps to max exponent",
			a:        als.Anchor{DX: 100, Lux: 100},
			b:        als.Anchor{DX: 200, Lux: 100000},
			expected: als.MaxExponent,
		},
		{
			name:     "flat pair clamps to min exponent",
			a:        als.Anchor{DX: 100, Lux: 1000},
			b:        als.Anchor{DX: 1000, Lux: 1100},
			expected: als.MinExponent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := als.DefaultCalibrator()
			require.True(t, c.FitTwoAnchors(tt.a, tt.b))
			assert.Equal(t, tt.expected, c.P)
			assert.InEpsilon(t, tt.a.Lux, c.EstimateLux(tt.a.DX), 1e-9, "anchor A is honoured exactly")
		})
	}
}

func TestCalibrator_FitTwoAnchors_RejectsBadAnchors(t *testing.T) {
	tests := []struct {
		name string
		a, b als.Anchor
	}{
		{name: "equal dx", a: als.Anchor{DX: 100, Lux: 10}, b: als.Anchor{DX: 100, Lux: 20}},
		{name: "zero dx", a: als.Anchor{DX: 0, Lux: 10}, b: als.Anchor{DX: 100, Lux: 20}},
		{name: "negative lux", a: als.Anchor{DX: 10, Lux: -1}, b: als.Anchor{DX: 100, Lux: 20}},
		{name: "zero lux", a: als.Anchor{DX: 10, Lux: 10}, b: als.Anchor{DX: 100, Lux: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := als.DefaultCalibrator()
			before := c
			assert.False(t, c.FitTwoAnchors(tt.a, tt.b))
			assert.Equal(t, before, c, "calibrator must be unchanged")
		})
	}
}

func TestCalibrator_CaptureDark(t *testing.T) {
	c := als.DefaultCalibrator()

	c.CaptureDark(12.5)
	assert.Equal(t, 12.5, c.XDark)

	c.CaptureDark(5000)
	assert.Equal(t, als.MaxCount, c.XDark)

	c.CaptureDark(-3)
	assert.Equal(t, 0.0, c.XDark)
}
