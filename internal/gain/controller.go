// SPDX-License-Identifier: GPL-3.0-only

package gain

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// WriteEpsilon is the smallest gain change that is written to a display.
const WriteEpsilon = 1e-4

// Applier writes a gain to one display. Implementations must be idempotent.
type Applier interface {
	ApplyGain(displayID string, gain float64) error
}

// DuckConfig tunes the HDR duck.
type DuckConfig struct {
	Enabled  bool
	Percent  float64
	Duration time.Duration
}

// DefaultDuckConfig ducks fully to unity over the default duration.
func DefaultDuckConfig() DuckConfig {
	return DuckConfig{Enabled: true, Percent: 0, Duration: DefaultDuckDuration}
}

// State is a copy of the gain controller's state.
type State struct {
	UserPercent   float64
	Factor        float64
	Cap           float64
	Effective     float64
	Active        bool
	DuckLevel     float64
	Ducking       bool
	HDRActive     bool
	Displays      []string
	ApplyFailures uint64
}

// Controller maps user intent to a gain and writes it to the target
// displays. It is not safe for concurrent use.
type Controller struct {
	applier Applier
	duckCfg DuckConfig

	userPercent float64
	cap         float64
	factor      float64
	active      bool

	duck Duck
	hdr  HDRDebouncer

	displays      []string
	written       map[string]float64
	applyFailures uint64
}

// NewController creates an inactive controller at unity cap.
func NewController(applier Applier, duck DuckConfig) *Controller {
	return &Controller{
		applier: applier,
		duckCfg: normalizeDuck(duck),
		cap:     UnityGain,
		factor:  UnityGain,
		written: make(map[string]float64),
	}
}

func normalizeDuck(cfg DuckConfig) DuckConfig {
	cfg.Percent = ClampPercent(cfg.Percent)
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuckDuration
	}
	return cfg
}

// SetUserPercent stores the user intent and derives the factor from it.
func (c *Controller) SetUserPercent(percent float64) {
	c.userPercent = ClampPercent(percent)
	c.factor = FactorForPercent(c.userPercent, c.cap)
}

// SetCap installs a new cap. The factor is re-derived from the stored
// intent so it never leaves [1, cap] and the intent itself is unchanged.
func (c *Controller) SetCap(cap float64) {
	if math.IsNaN(cap) || cap < UnityGain {
		cap = UnityGain
	}
	if cap != c.cap {
		log.Debug().Float64("cap", cap).Float64("percent", c.userPercent).Msg("Gain cap changed")
	}
	c.cap = cap
	c.factor = FactorForPercent(c.userPercent, c.cap)
}

// SetActive engages or releases the gain path. A released path writes unity.
func (c *Controller) SetActive(active bool) {
	c.active = active
}

// SetDuckConfig replaces the duck tuning. Disabling the duck while ducked
// tweens back to zero.
func (c *Controller) SetDuckConfig(cfg DuckConfig, now time.Time) {
	c.duckCfg = normalizeDuck(cfg)
	if !c.duckCfg.Enabled && c.duck.Target() > 0 {
		c.duck.Start(0, now, c.duckCfg.Duration)
	}
}

// ObserveHDR folds one poll of the HDR-likely signal. It reports whether a
// duck tween was started.
func (c *Controller) ObserveHDR(likely bool, now time.Time) bool {
	active, changed := c.hdr.Update(likely)
	if !changed {
		return false
	}

	target := 0.0
	if active && c.duckCfg.Enabled {
		target = 1.0
	}
	if target == c.duck.Target() {
		return false
	}
	log.Info().Bool("hdr", active).Float64("target", target).Msg("Starting duck animation")
	c.duck.Start(target, now, c.duckCfg.Duration)
	return true
}

// TickDuck advances the duck tween and reports whether the level changed.
func (c *Controller) TickDuck(now time.Time) bool {
	_, changed := c.duck.Tick(now)
	return changed
}

// Ducking reports whether a duck tween is in flight.
func (c *Controller) Ducking() bool { return c.duck.Animating() }

// DuckTarget is the gain the duck settles on at full level.
func (c *Controller) DuckTarget() float64 {
	return FactorForPercent(c.duckCfg.Percent, c.cap)
}

// EffectiveGain is the gain written to displays: the factor blended toward
// the duck target by the duck level, or unity while released.
func (c *Controller) EffectiveGain() float64 {
	if !c.active {
		return UnityGain
	}
	level := c.duck.Level()
	if level <= 0 {
		return c.factor
	}
	return ClampFactor((1-level)*c.factor+level*c.DuckTarget(), c.cap)
}

// SetDisplays replaces the target displays and forces a rewrite of each.
func (c *Controller) SetDisplays(ids []string) {
	c.displays = lo.Uniq(ids)
	c.Invalidate()
}

// Invalidate forgets what was written so the next Apply rewrites every
// display.
func (c *Controller) Invalidate() {
	clear(c.written)
}

// Apply writes the effective gain to every display whose last written gain
// differs by more than WriteEpsilon. A failing display is skipped and retried
// on the next call. It returns the number of writes attempted.
func (c *Controller) Apply() int {
	if c.applier == nil {
		return 0
	}

	gain := c.EffectiveGain()
	attempted := 0
	for _, id := range c.displays {
		if last, ok := c.written[id]; ok && math.Abs(last-gain) <= WriteEpsilon {
			continue
		}
		attempted++
		if err := c.applier.ApplyGain(id, gain); err != nil {
			c.applyFailures++
			delete(c.written, id)
			log.Warn().Err(err).Str("display", id).Float64("gain", gain).Msg("Failed to apply gain, skipping display")
			continue
		}
		c.written[id] = gain
	}
	return attempted
}

// UserPercent returns the stored intent.
func (c *Controller) UserPercent() float64 { return c.userPercent }

// Factor returns the unducked gain for the stored intent.
func (c *Controller) Factor() float64 { return c.factor }

// Cap returns the installed cap.
func (c *Controller) Cap() float64 { return c.cap }

// State returns a copy of the controller's state.
func (c *Controller) State() State {
	return State{
		UserPercent:   c.userPercent,
		Factor:        c.factor,
		Cap:           c.cap,
		Effective:     c.EffectiveGain(),
		Active:        c.active,
		DuckLevel:     c.duck.Level(),
		Ducking:       c.duck.Animating(),
		HDRActive:     c.hdr.Active(),
		Displays:      append([]string(nil), c.displays...),
		ApplyFailures: c.applyFailures,
	}
}
