package gain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shini4i/edr-brightness-daemon/internal/gain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	display string
	gain    float64
}

// recordingApplier records every write and fails for displays in fail.
type recordingApplier struct {
	writes []write
	fail   map[string]bool
}

func (r *recordingApplier) ApplyGain(displayID string, g float64) error {
	r.writes = append(r.writes, write{displayID, g})
	if r.fail[displayID] {
		return errors.New("display removed")
	}
	return nil
}

func newController(t *testing.T) (*gain.Controller, *recordingApplier) {
	t.Helper()
	a := &recordingApplier{fail: map[string]bool{}}
	c := gain.NewController(a, gain.DefaultDuckConfig())
	c.SetDisplays([]string{"eDP-1"})
	c.SetCap(1.5)
	c.SetActive(true)
	return c, a
}

func TestController_CapDropPreservesIntent(t *testing.T) {
	c, _ := newController(t)
	c.SetUserPercent(80)
	assert.InDelta(t, 1.4, c.Factor(), 1e-12)

	c.SetCap(1.2)
	assert.InDelta(t, 1.16, c.Factor(), 1e-12)
	assert.Equal(t, 80.0, c.UserPercent())

	c.SetCap(1.5)
	assert.InDelta(t, 1.4, c.Factor(), 1e-12, "intent survives the round trip")
}

func TestController_CapBelowUnity(t *testing.T) {
	c, _ := newController(t)
	c.SetUserPercent(100)
	c.SetCap(0.7)
	assert.Equal(t, 1.0, c.Cap())
	assert.Equal(t, 1.0, c.Factor())
}

func TestController_InactiveWritesUnity(t *testing.T) {
	c, a := newController(t)
	c.SetUserPercent(100)
	c.SetActive(false)

	assert.Equal(t, 1.0, c.EffectiveGain())
	c.Apply()
	require.Len(t, a.writes, 1)
	assert.Equal(t, 1.0, a.writes[0].gain)
}

func TestController_ApplyDeduplicates(t *testing.T) {
	c, a := newController(t)
	c.SetUserPercent(50)

	assert.Equal(t, 1, c.Apply())
	assert.Equal(t, 0, c.Apply(), "unchanged gain is not rewritten")

	c.SetUserPercent(50.00001)
	assert.Equal(t, 0, c.Apply(), "changes under the epsilon are not rewritten")

	c.SetUserPercent(60)
	assert.Equal(t, 1, c.Apply())

	c.Invalidate()
	assert.Equal(t, 1, c.Apply(), "invalidation forces a rewrite")
	assert.Len(t, a.writes, 3)
}

func TestController_ApplyFailureSkipsDisplay(t *testing.T) {
	a := &recordingApplier{fail: map[string]bool{"eDP-2": true}}
	c := gain.NewController(a, gain.DefaultDuckConfig())
	c.SetDisplays([]string{"eDP-1", "eDP-2", "eDP-1"})
	c.SetCap(1.5)
	c.SetActive(true)
	c.SetUserPercent(40)

	assert.Equal(t, 2, c.Apply())
	assert.Equal(t, uint64(1), c.State().ApplyFailures)
	assert.Equal(t, []string{"eDP-1", "eDP-2"}, c.State().Displays)

	// the failed display is retried, the healthy one is not rewritten
	a.fail["eDP-2"] = false
	assert.Equal(t, 1, c.Apply())
	assert.Equal(t, "eDP-2", a.writes[len(a.writes)-1].display)
	assert.Equal(t, 0, c.Apply())
}

func TestController_DuckBlendsTowardDuckTarget(t *testing.T) {
	a := &recordingApplier{}
	c := gain.NewController(a, gain.DuckConfig{Enabled: true, Percent: 20, Duration: 200 * time.Millisecond})
	c.SetDisplays([]string{"eDP-1"})
	c.SetCap(1.5)
	c.SetActive(true)
	c.SetUserPercent(100)

	assert.False(t, c.ObserveHDR(true, t0))
	assert.True(t, c.ObserveHDR(true, t0))
	require.True(t, c.Ducking())

	c.TickDuck(t0.Add(100 * time.Millisecond))
	// level 0.5 between 1.5 and the duck target 1.1
	assert.InDelta(t, 1.3, c.EffectiveGain(), 1e-9)

	c.TickDuck(t0.Add(200 * time.Millisecond))
	assert.False(t, c.Ducking())
	assert.InDelta(t, 1.1, c.EffectiveGain(), 1e-9)
}

func TestController_NoWritesAfterDuckCompletes(t *testing.T) {
	c, a := newController(t)
	c.SetUserPercent(100)
	c.Apply()

	c.ObserveHDR(true, t0)
	c.ObserveHDR(true, t0)

	now := t0
	for c.Ducking() {
		now = now.Add(frame)
		if c.TickDuck(now) {
			c.Apply()
		}
	}
	writes := len(a.writes)
	assert.InDelta(t, 1.0, a.writes[writes-1].gain, 1e-12)

	for i := 0; i < 10; i++ {
		now = now.Add(frame)
		assert.False(t, c.TickDuck(now))
		c.Apply()
	}
	assert.Len(t, a.writes, writes)
}

func TestController_HDRExitUnducks(t *testing.T) {
	c, _ := newController(t)
	c.SetUserPercent(100)

	c.ObserveHDR(true, t0)
	c.ObserveHDR(true, t0)
	c.TickDuck(t0.Add(time.Second))
	require.InDelta(t, 1.0, c.EffectiveGain(), 1e-12)

	now := t0.Add(2 * time.Second)
	assert.False(t, c.ObserveHDR(false, now))
	assert.False(t, c.ObserveHDR(false, now))
	assert.True(t, c.ObserveHDR(false, now))

	c.TickDuck(now.Add(time.Second))
	assert.InDelta(t, 1.5, c.EffectiveGain(), 1e-12)
	assert.False(t, c.State().HDRActive)
}

func TestController_DisabledDuckIgnoresHDR(t *testing.T) {
	c, _ := newController(t)
	c.SetDuckConfig(gain.DuckConfig{Enabled: false}, t0)

	c.ObserveHDR(true, t0)
	assert.False(t, c.ObserveHDR(true, t0))
	assert.False(t, c.Ducking())
	assert.True(t, c.State().HDRActive)
}
