package gain_test

import (
	"testing"
	"time"

	"github.com/shini4i/edr-brightness-daemon/internal/gain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 21, 21, 0, 0, 0, time.UTC)

const frame = time.Second / gain.DuckFrameRate

func TestDuck_TerminatesAtTarget(t *testing.T) {
	var d gain.Duck
	d.Start(1, t0, gain.DefaultDuckDuration)
	require.True(t, d.Animating())

	prev := 0.0
	now := t0
	for d.Animating() {
		now = now.Add(frame)
		level, _ := d.Tick(now)
		assert.GreaterOrEqual(t, level, prev, "level is monotonic toward the target")
		prev = level
		require.False(t, now.Sub(t0) > 2*gain.DefaultDuckDuration, "animation did not terminate")
	}

	assert.Equal(t, 1.0, d.Level())
	assert.False(t, d.Animating())

	level, changed := d.Tick(now.Add(time.Second))
	assert.Equal(t, 1.0, level)
	assert.False(t, changed, "an idle duck reports no change")
}

func TestDuck_SmoothstepMidpoint(t *testing.T) {
	var d gain.Duck
	d.Start(1, t0, 200*time.Millisecond)

	level, changed := d.Tick(t0.Add(100 * time.Millisecond))
	assert.True(t, changed)
	assert.InDelta(t, 0.5, level, 1e-9)

	level, _ = d.Tick(t0.Add(50 * time.Millisecond))
	assert.InDelta(t, 0.15625, level, 1e-9)
}

func TestDuck_PreemptRestartsFromCurrentLevel(t *testing.T) {
	var d gain.Duck
	d.Start(1, t0, 200*time.Millisecond)
	mid, _ := d.Tick(t0.Add(100 * time.Millisecond))

	restart := t0.Add(100 * time.Millisecond)
	d.Start(0, restart, 200*time.Millisecond)
	assert.Equal(t, 0.0, d.Target())

	level, _ := d.Tick(restart)
	assert.InDelta(t, mid, level, 1e-9, "a pre-empting tween starts where the last one was")

	level, _ = d.Tick(restart.Add(200 * time.Millisecond))
	assert.Equal(t, 0.0, level)
	assert.False(t, d.Animating())
}

func TestDuck_ZeroDurationJumps(t *testing.T) {
	var d gain.Duck
	d.Start(1, t0, 0)
	assert.False(t, d.Animating())
	assert.Equal(t, 1.0, d.Level())
}

func TestHDRDebouncer(t *testing.T) {
	tests := []struct {
		name    string
		polls   []bool
		active  []bool
		changes int
	}{
		{
			name:    "two polls to enter",
			polls:   []bool{true, true},
			active:  []bool{false, true},
			changes: 1,
		},
		{
			name:    "single blip is ignored",
			polls:   []bool{true, false, true, false},
			active:  []bool{false, false, false, false},
			changes: 0,
		},
		{
			name:    "three polls to exit",
			polls:   []bool{true, true, false, false, false},
			active:  []bool{false, true, true, true, false},
			changes: 2,
		},
		{
			name:    "exit streak resets on a positive poll",
			polls:   []bool{true, true, false, false, true, false, false},
			active:  []bool{false, true, true, true, true, true, true},
			changes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h gain.HDRDebouncer
			changes := 0
			for i, p := range tt.polls {
				active, changed := h.Update(p)
				assert.Equal(t, tt.active[i], active, "poll %d", i)
				if changed {
					changes++
				}
			}
			assert.Equal(t, tt.changes, changes)
		})
	}
}
