// SPDX-License-Identifier: GPL-3.0-only

package gain

import (
	"time"

	"github.com/samber/lo"
)

const (
	// DuckFrameRate is the animation tick rate while a duck tween runs.
	DuckFrameRate = 30

	// DefaultDuckDuration is the length of one duck tween.
	DefaultDuckDuration = 250 * time.Millisecond

	// HDREnterPolls and HDRExitPolls are the consecutive polls needed to
	// start and stop ducking.
	HDREnterPolls = 2
	HDRExitPolls  = 3
)

// Duck tweens a level in [0, 1] with smoothstep easing. Idle and Animating
// are its two states; Tick advances it.
type Duck struct {
	level     float64
	animating bool
	from      float64
	to        float64
	start     time.Time
	duration  time.Duration
}

// Start begins a tween from the current level to target, pre-empting any
// tween in flight.
func (d *Duck) Start(target float64, now time.Time, duration time.Duration) {
	target = lo.Clamp(target, 0, 1)
	if duration <= 0 {
		d.level = target
		d.animating = false
		return
	}
	d.from = d.level
	d.to = target
	d.start = now
	d.duration = duration
	d.animating = true
}

// Tick advances the tween. It returns the level and whether the level
// changed. An idle Duck never reports a change.
func (d *Duck) Tick(now time.Time) (float64, bool) {
	if !d.animating {
		return d.level, false
	}

	t := lo.Clamp(float64(now.Sub(d.start))/float64(d.duration), 0, 1)
	prev := d.level
	if t >= 1 {
		d.level = d.to
		d.animating = false
	} else {
		d.level = d.from + (d.to-d.from)*smoothstep(t)
	}
	return d.level, d.level != prev || !d.animating
}

// Level returns the current level.
func (d *Duck) Level() float64 { return d.level }

// Animating reports whether a tween is in flight.
func (d *Duck) Animating() bool { return d.animating }

// Target returns the level the current or last tween heads to.
func (d *Duck) Target() float64 {
	if d.animating {
		return d.to
	}
	return d.level
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// HDRDebouncer turns the per-poll HDR-likely signal into a stable state,
// entering quickly and leaving slowly.
type HDRDebouncer struct {
	active bool
	streak int
}

// Update folds one poll and reports the debounced state and whether it
// changed on this poll.
func (h *HDRDebouncer) Update(likely bool) (active, changed bool) {
	if likely == h.active {
		h.streak = 0
		return h.active, false
	}

	h.streak++
	need := HDREnterPolls
	if h.active {
		need = HDRExitPolls
	}
	if h.streak >= need {
		h.active = likely
		h.streak = 0
		return h.active, true
	}
	return h.active, false
}

// Active returns the debounced state.
func (h *HDRDebouncer) Active() bool { return h.active }
