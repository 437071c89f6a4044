package als_test

import (
	"math"
	"testing"
	"time"

	"github.com/shini4i/edr-brightness-daemon/internal/als"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)

func TestRollingMax_NonDecreasingBetweenDecays(t *testing.T) {
	var r als.RollingMax
	seq := []float64{10, 400, 5, 900, 0, 899, 1500, 20, 1499}

	prev := 0.0
	for i, dx := range seq {
		// all within the first decay interval
		r.Observe(dx, t0.Add(time.Duration(i)*time.Second))
		assert.GreaterOrEqual(t, r.MaxDx(), prev, "step %d", i)
		prev = r.MaxDx()
	}
	assert.Equal(t, 1500.0, r.MaxDx())
}

func TestRollingMax_Decay(t *testing.T) {
	var r als.RollingMax
	r.Observe(1000, t0)

	r.Observe(0, t0.Add(29*time.Second))
	assert.Equal(t, 1000.0, r.MaxDx(), "no decay before the interval elapses")

	r.Observe(0, t0.Add(30*time.Second))
	assert.InDelta(t, 995.0, r.MaxDx(), 1e-9)

	r.Observe(0, t0.Add(95*time.Second))
	assert.InDelta(t, 1000*math.Pow(als.DecayFactor, 3), r.MaxDx(), 1e-9)
}

func TestRollingMax_Confidence(t *testing.T) {
	cfg := als.DefaultBlendConfig()

	t.Run("zero during warm-up", func(t *testing.T) {
		var r als.RollingMax
		r.Observe(als.MaxCount, t0)
		assert.Equal(t, 0.0, r.Confidence(t0.Add(time.Second), cfg))
		assert.Equal(t, 1.0, r.Confidence(t0.Add(2*time.Second), cfg))
	})

	t.Run("zero below the daylight trigger", func(t *testing.T) {
		var r als.RollingMax
		r.Observe(1100, t0)
		assert.Equal(t, 0.0, r.Confidence(t0.Add(time.Minute), cfg))
	})

	t.Run("scales between trigger and ceiling", func(t *testing.T) {
		var r als.RollingMax
		r.Observe(1200+(als.MaxCount-1200)/2, t0)
		assert.InDelta(t, 0.5, r.Confidence(t0.Add(5*time.Second), cfg), 1e-9)
	})

	t.Run("saturation opens the gate but not the weight", func(t *testing.T) {
		var r als.RollingMax
		r.Observe(100, t0)
		r.MarkSaturated()
		assert.True(t, r.SawSaturation())
		assert.Equal(t, 0.0, r.Confidence(t0.Add(5*time.Second), cfg))
	})

	t.Run("no observations means no confidence", func(t *testing.T) {
		var r als.RollingMax
		assert.Equal(t, 0.0, r.Confidence(t0, cfg))
	})
}

func TestRollingMax_Blend(t *testing.T) {
	cfg := als.DefaultBlendConfig()
	var r als.RollingMax
	r.Observe(als.MaxCount, t0)
	now := t0.Add(3 * time.Second)

	lux, lrel, w := r.Blend(1000, als.MaxCount, now, cfg)
	assert.InDelta(t, cfg.MaxLux, lrel, 1e-9)
	assert.InDelta(t, cfg.MaxWeight, w, 1e-12)
	assert.InDelta(t, 0.75*1000+0.25*100000, lux, 1e-6)

	lux, _, _ = r.Blend(500000, als.MaxCount, now, cfg)
	assert.Equal(t, als.MaxLux, lux, "blended lux is capped")
}

func TestRollingMax_RelativeLux(t *testing.T) {
	cfg := als.DefaultBlendConfig()

	var empty als.RollingMax
	assert.Equal(t, cfg.MinLux, empty.RelativeLux(100, cfg))

	var r als.RollingMax
	r.Observe(1000, t0)
	expected := cfg.MinLux + (cfg.MaxLux-cfg.MinLux)*math.Pow(0.5, cfg.Exponent)
	assert.InDelta(t, expected, r.RelativeLux(500, cfg), 1e-9)
	assert.InDelta(t, cfg.MaxLux, r.RelativeLux(5000, cfg), 1e-9, "ratio is clamped to 1")
}

func TestRollingMax_Reset(t *testing.T) {
	var r als.RollingMax
	r.Observe(800, t0)
	r.MarkSaturated()
	r.Reset()
	assert.Equal(t, 0.0, r.MaxDx())
	assert.False(t, r.SawSaturation())
}
