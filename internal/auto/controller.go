// SPDX-License-Identifier: GPL-3.0-only

package auto

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// GraceWindow is how long automatic transitions are suppressed after a
// manual toggle.
const GraceWindow = 15 * time.Second

// State is the automatic controller's engagement state.
type State int

const (
	// Disabled means the extended brightness path is off.
	Disabled State = iota
	// Enabled means the extended brightness path is on and ramping.
	Enabled
)

// String returns the state name.
func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Transition reports a state change produced by one evaluation.
type Transition int

const (
	// NoTransition means the state did not change.
	NoTransition Transition = iota
	// TransitionEnabled means the controller just enabled.
	TransitionEnabled
	// TransitionDisabled means the controller just disabled.
	TransitionDisabled
)

// Decision is the outcome of one evaluation.
type Decision struct {
	State      State
	Transition Transition
	// Percent is the applied percent. It is zero while disabled.
	Percent float64
	// Desired is the percent the illuminance curve asks for, staged even
	// while disabled.
	Desired float64
	// Ceiling is the entry-envelope ceiling in effect.
	Ceiling float64
}

// Status is a copy of the controller's runtime state.
type Status struct {
	Profile      string
	State        State
	AboveCount   int
	BelowCount   int
	AboveNeeded  int
	BelowNeeded  int
	GraceUntil   time.Time
	EnabledAt    time.Time
	DisabledAt   time.Time
	Percent      float64
	Desired      float64
	LastLux      float64
	LastEvaluate time.Time
}

// Controller is the hysteresis and ramp state machine. It is not safe for
// concurrent use; the owner serializes calls.
type Controller struct {
	profile  Profile
	sampleHz float64

	state      State
	aboveCount int
	belowCount int
	graceUntil time.Time
	enabledAt  time.Time
	disabledAt time.Time

	percent float64
	desired float64
	lastLux float64
	lastAt  time.Time
}

// NewController creates a disabled controller.
func NewController(profile Profile, sampleHz float64) *Controller {
	return &Controller{profile: profile, sampleHz: sampleHz}
}

// Evaluate folds one illuminance reading into the state machine.
func (c *Controller) Evaluate(lux float64, now time.Time) Decision {
	dt := c.tickInterval()
	if !c.lastAt.IsZero() && now.After(c.lastAt) {
		dt = now.Sub(c.lastAt)
	}
	c.lastAt = now
	c.lastLux = lux

	aboveNeeded, belowNeeded := c.needed()
	if lux >= c.profile.OnLux {
		c.aboveCount = min(c.aboveCount+1, aboveNeeded)
	} else {
		c.aboveCount = max(c.aboveCount-1, 0)
	}
	if lux < c.profile.OffLux {
		c.belowCount = min(c.belowCount+1, belowNeeded)
	} else {
		c.belowCount = max(c.belowCount-1, 0)
	}

	c.desired = c.curve(lux)
	graceActive := now.Before(c.graceUntil)
	transition := NoTransition

	switch c.state {
	case Disabled:
		dwellOK := c.disabledAt.IsZero() || now.Sub(c.disabledAt) >= c.profile.MinOffDwell
		if c.aboveCount >= aboveNeeded && !graceActive && dwellOK {
			c.enable(now)
			transition = TransitionEnabled
			log.Info().Float64("lux", lux).Str("profile", c.profile.Name).Msg("Auto brightness enabled")
		}
	case Enabled:
		dwellOK := now.Sub(c.enabledAt) >= c.profile.MinOnDwell
		if c.belowCount >= belowNeeded && !graceActive && dwellOK {
			c.disable(now)
			transition = TransitionDisabled
			log.Info().Float64("lux", lux).Str("profile", c.profile.Name).Msg("Auto brightness disabled")
		}
	}

	ceiling := c.ceiling(now)
	if c.state == Enabled && transition != TransitionEnabled {
		c.ramp(ceiling, dt)
	}

	return Decision{
		State:      c.state,
		Transition: transition,
		Percent:    c.percent,
		Desired:    c.desired,
		Ceiling:    ceiling,
	}
}

func (c *Controller) enable(now time.Time) {
	c.state = Enabled
	c.aboveCount = 0
	c.belowCount = 0
	c.enabledAt = now
	c.percent = c.profile.EntryMinPercent
}

func (c *Controller) disable(now time.Time) {
	c.state = Disabled
	c.aboveCount = 0
	c.belowCount = 0
	c.disabledAt = now
	c.percent = 0
}

// ramp moves the applied percent toward the desired percent under the entry
// envelope, the entry floor and the slope limit.
func (c *Controller) ramp(ceiling float64, dt time.Duration) {
	target := math.Min(c.desired, ceiling)
	target = math.Max(target, c.profile.EntryMinPercent)

	step := (target - c.percent) * lo.Clamp(c.profile.RampStep, 0, 1)
	if c.profile.MaxPercentPerSecond > 0 {
		limit := c.profile.MaxPercentPerSecond * dt.Seconds()
		step = lo.Clamp(step, -limit, limit)
	}
	c.percent = lo.Clamp(c.percent+step, 0, math.Max(ceiling, c.profile.EntryMinPercent))
}

// curve maps illuminance to a percent: EntryMinPercent at OnLux rising along
// a smoothstep in log space to 100 at ten times OnLux.
func (c *Controller) curve(lux float64) float64 {
	p0 := c.profile.EntryMinPercent
	if lux <= c.profile.OnLux || c.profile.OnLux <= 0 {
		return p0
	}
	u := lo.Clamp(math.Log10(lux/c.profile.OnLux), 0, 1)
	return p0 + (100-p0)*Smoothstep(u)
}

// ceiling is the entry-envelope ceiling at now.
func (c *Controller) ceiling(now time.Time) float64 {
	if c.state != Enabled {
		return c.profile.EntryMinPercent
	}
	if c.profile.EntryEnvelope <= 0 {
		return 100
	}
	frac := lo.Clamp(now.Sub(c.enabledAt).Seconds()/c.profile.EntryEnvelope.Seconds(), 0, 1)
	return c.profile.EntryMinPercent + (100-c.profile.EntryMinPercent)*frac
}

func (c *Controller) needed() (above, below int) {
	above = int(math.Ceil(c.sampleHz * c.profile.OnSeconds))
	below = int(math.Ceil(c.sampleHz * c.profile.OffSeconds))
	return max(above, 1), max(below, 1)
}

func (c *Controller) tickInterval() time.Duration {
	if c.sampleHz <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.sampleHz)
}

// Override forces the state after a manual toggle and opens the grace window.
func (c *Controller) Override(enabled bool, now time.Time) {
	c.graceUntil = now.Add(GraceWindow)
	if enabled && c.state != Enabled {
		c.enable(now)
	} else if !enabled && c.state != Disabled {
		c.disable(now)
	}
	c.aboveCount = 0
	c.belowCount = 0
}

// SetProfile switches the active profile and resets the dwell counters.
func (c *Controller) SetProfile(p Profile) {
	c.profile = p
	c.aboveCount = 0
	c.belowCount = 0
}

// SetSampleRate changes the sampling rate used to size the dwell counters.
func (c *Controller) SetSampleRate(hz float64) {
	c.sampleHz = hz
	above, below := c.needed()
	c.aboveCount = min(c.aboveCount, above)
	c.belowCount = min(c.belowCount, below)
}

// Profile returns the active profile.
func (c *Controller) Profile() Profile { return c.profile }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Percent returns the applied percent.
func (c *Controller) Percent() float64 { return c.percent }

// Status returns a copy of the runtime state.
func (c *Controller) Status() Status {
	above, below := c.needed()
	return Status{
		Profile:      c.profile.Name,
		State:        c.state,
		AboveCount:   c.aboveCount,
		BelowCount:   c.belowCount,
		AboveNeeded:  above,
		BelowNeeded:  below,
		GraceUntil:   c.graceUntil,
		EnabledAt:    c.enabledAt,
		DisabledAt:   c.disabledAt,
		Percent:      c.percent,
		Desired:      c.desired,
		LastLux:      c.lastLux,
		LastEvaluate: c.lastAt,
	}
}

// Smoothstep is the cubic ease t*t*(3-2t) on [0, 1].
func Smoothstep(t float64) float64 {
	t = lo.Clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}
